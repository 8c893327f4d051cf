package schemas

import "time"

// -- Fill Report Schemas --

// FillStatus is the per-field outcome of a form population pass.
type FillStatus string

const (
	FillFilled     FillStatus = "filled"
	FillUnfillable FillStatus = "unfillable"
	FillNotFound   FillStatus = "not_found"
	// FillSkipped means the record has no value for the field.
	FillSkipped FillStatus = "skipped"
)

// FieldResult is one line of a FillReport.
type FieldResult struct {
	Field    string     `json:"field"`
	Kind     ValueKind  `json:"kind"`
	Status   FillStatus `json:"status"`
	Strategy string     `json:"strategy,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// FillReport records what happened to each field, in fill order.
type FillReport struct {
	Fields []FieldResult `json:"fields"`
}

// Add appends a field outcome.
func (r *FillReport) Add(res FieldResult) {
	r.Fields = append(r.Fields, res)
}

// Count returns how many fields ended with the given status.
func (r *FillReport) Count(status FillStatus) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, f := range r.Fields {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Missing lists the fields that could not be located.
func (r *FillReport) Missing() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, f := range r.Fields {
		if f.Status == FillNotFound {
			out = append(out, f.Field)
		}
	}
	return out
}

// Result looks up a field's outcome.
func (r *FillReport) Result(field string) (FieldResult, bool) {
	if r == nil {
		return FieldResult{}, false
	}
	for _, f := range r.Fields {
		if f.Field == field {
			return f, true
		}
	}
	return FieldResult{}, false
}

// -- Batch Schemas --

// BatchDetail is the outcome of one (record, target) pair.
type BatchDetail struct {
	RecordID     int64     `json:"record_id"`
	Target       string    `json:"target"`
	SubmissionID string    `json:"submission_id,omitempty"`
	Success      bool      `json:"success"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// BatchResult summarizes a batch run. Successful + Failed always equals Total.
type BatchResult struct {
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Details    []BatchDetail `json:"details"`
}

// Append adds a pair outcome and keeps the counters consistent.
func (b *BatchResult) Append(d BatchDetail) {
	b.Details = append(b.Details, d)
	b.Total++
	if d.Success {
		b.Successful++
	} else {
		b.Failed++
	}
}
