// internal/store/repository.go
package store

import (
	"context"
	"errors"

	"github.com/Enroleai/Uni-Automation/api/schemas"
)

// ErrNotFound is returned when a submission or record id does not exist.
var ErrNotFound = errors.New("not found")

// Repository is the submission and record store. Submissions are never
// deleted.
type Repository interface {
	CreateSubmission(ctx context.Context, sub *schemas.Submission) error
	UpdateSubmission(ctx context.Context, sub *schemas.Submission) error
	GetSubmission(ctx context.Context, id string) (*schemas.Submission, error)
	// ListSubmissions returns every submission, or only those of one record
	// when recordID is set, oldest first.
	ListSubmissions(ctx context.Context, recordID *int64) ([]schemas.Submission, error)

	SaveRecords(ctx context.Context, records []schemas.Record) error
	GetRecord(ctx context.Context, id int64) (*schemas.Record, error)
	ListRecords(ctx context.Context) ([]schemas.Record, error)

	Close()
}
