// internal/submission/errors.go
package submission

import (
	"errors"
	"fmt"

	"github.com/Enroleai/Uni-Automation/api/schemas"
)

// ErrorCode classifies why a stage failed.
type ErrorCode string

const (
	// CodeFieldNotFound is never fatal; it only appears in fill reports.
	CodeFieldNotFound     ErrorCode = "FIELD_NOT_FOUND"
	CodeControlNotFound   ErrorCode = "CONTROL_NOT_FOUND"
	CodeNavigationFailure ErrorCode = "NAVIGATION_FAILURE"
	// CodeVerificationTimeout is logged as a warning; the workflow continues.
	CodeVerificationTimeout ErrorCode = "VERIFICATION_TIMEOUT"
	CodeLoginFailure        ErrorCode = "LOGIN_FAILURE"
	CodeSubmissionFailure   ErrorCode = "SUBMISSION_FAILURE"
	CodeStoreFailure        ErrorCode = "STORE_FAILURE"
)

// ErrControlNotFound is wrapped when no button matched any candidate label or
// the generic submit fallback.
var ErrControlNotFound = errors.New("no matching control found")

// StageError is a failure raised by one stage of the workflow.
type StageError struct {
	Stage schemas.Status
	Code  ErrorCode
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Code, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage schemas.Status, code ErrorCode, err error) *StageError {
	return &StageError{Stage: stage, Code: code, Err: err}
}

// CodeOf extracts the error code from err, or "" if err is not a StageError.
func CodeOf(err error) ErrorCode {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
