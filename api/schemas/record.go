package schemas

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	json "github.com/json-iterator/go"
)

// validate is shared by every load-time check in this package. validator
// caches struct metadata, so a single instance is reused.
var validate = validator.New()

// -- Record Schemas --

// Record is the subject being registered on a target site. It is immutable once
// loaded; the core only ever reads it.
type Record struct {
	ID         int64  `json:"id" validate:"gte=0"`
	FirstName  string `json:"first_name" validate:"required"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty"`
	// DateOfBirth is kept in its wire format (YYYY-MM-DD), which is also what
	// date inputs accept.
	DateOfBirth string `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender      string `json:"gender,omitempty"`
	Nationality string `json:"nationality,omitempty"`

	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country,omitempty"`

	HighSchoolName string `json:"high_school_name,omitempty"`
	GraduationYear int    `json:"graduation_year,omitempty" validate:"omitempty,gte=1900,lte=2200"`
	GPA            string `json:"gpa,omitempty"`
	SATScore       int    `json:"sat_score,omitempty" validate:"omitempty,gte=400,lte=1600"`
	ACTScore       int    `json:"act_score,omitempty" validate:"omitempty,gte=1,lte=36"`

	IntendedMajor    string `json:"intended_major,omitempty"`
	Extracurriculars string `json:"extracurriculars,omitempty"`
}

// Validate checks the record's required fields and formats.
func (r *Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("record %d: %w", r.ID, err)
	}
	return nil
}

// FieldValues flattens the record into logical field name -> string value, the
// form the Form Populator consumes. Empty strings and zero scores are omitted
// so that unset attributes surface as skipped fields rather than blank fills.
func (r *Record) FieldValues() map[string]string {
	values := map[string]string{
		"first_name":       r.FirstName,
		"middle_name":      r.MiddleName,
		"last_name":        r.LastName,
		"email":            r.Email,
		"phone":            r.Phone,
		"date_of_birth":    r.DateOfBirth,
		"gender":           r.Gender,
		"nationality":      r.Nationality,
		"address_line1":    r.AddressLine1,
		"address_line2":    r.AddressLine2,
		"city":             r.City,
		"state":            r.State,
		"postal_code":      r.PostalCode,
		"country":          r.Country,
		"high_school_name": r.HighSchoolName,
		"gpa":              r.GPA,
		"intended_major":   r.IntendedMajor,
		"extracurriculars": r.Extracurriculars,
	}
	for k, v := range values {
		if v == "" {
			delete(values, k)
		}
	}
	if r.GraduationYear > 0 {
		values["graduation_year"] = strconv.Itoa(r.GraduationYear)
	}
	if r.SATScore > 0 {
		values["sat_score"] = strconv.Itoa(r.SATScore)
	}
	if r.ACTScore > 0 {
		values["act_score"] = strconv.Itoa(r.ACTScore)
	}
	return values
}

// DecodeRecords reads a JSON array of records and validates each one.
func DecodeRecords(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	seen := make(map[int64]struct{}, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[records[i].ID]; dup {
			return nil, fmt.Errorf("duplicate record id %d", records[i].ID)
		}
		seen[records[i].ID] = struct{}{}
	}
	return records, nil
}
