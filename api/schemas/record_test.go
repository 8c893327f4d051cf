package schemas_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enroleai/Uni-Automation/api/schemas"
)

func TestDecodeRecords(t *testing.T) {
	t.Run("valid records", func(t *testing.T) {
		raw := `[
		  {"id": 1, "first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com",
		   "date_of_birth": "2006-12-10", "sat_score": 1500, "graduation_year": 2025, "state": "CA"},
		  {"id": 2, "first_name": "Alan", "last_name": "Turing", "email": "alan@example.com"}
		]`
		records, err := schemas.DecodeRecords(strings.NewReader(raw))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Lovelace", records[0].LastName)
		assert.Equal(t, 1500, records[0].SATScore)
	})

	t.Run("invalid email is rejected", func(t *testing.T) {
		raw := `[{"id": 1, "first_name": "A", "last_name": "B", "email": "not-an-email"}]`
		_, err := schemas.DecodeRecords(strings.NewReader(raw))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Email")
	})

	t.Run("bad date format is rejected", func(t *testing.T) {
		raw := `[{"id": 1, "first_name": "A", "last_name": "B", "email": "a@b.com", "date_of_birth": "10/12/2006"}]`
		_, err := schemas.DecodeRecords(strings.NewReader(raw))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DateOfBirth")
	})

	t.Run("duplicate ids are rejected", func(t *testing.T) {
		raw := `[
		  {"id": 3, "first_name": "A", "last_name": "B", "email": "a@b.com"},
		  {"id": 3, "first_name": "C", "last_name": "D", "email": "c@d.com"}
		]`
		_, err := schemas.DecodeRecords(strings.NewReader(raw))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate record id 3")
	})
}

func TestRecordFieldValues(t *testing.T) {
	r := schemas.Record{
		ID:             9,
		FirstName:      "Grace",
		LastName:       "Hopper",
		Email:          "grace@example.com",
		GraduationYear: 2026,
		ACTScore:       33,
	}
	values := r.FieldValues()

	assert.Equal(t, "Grace", values["first_name"])
	assert.Equal(t, "2026", values["graduation_year"])
	assert.Equal(t, "33", values["act_score"])

	_, hasMiddle := values["middle_name"]
	assert.False(t, hasMiddle, "empty attributes are omitted")
	_, hasSAT := values["sat_score"]
	assert.False(t, hasSAT, "zero scores are omitted")
}
