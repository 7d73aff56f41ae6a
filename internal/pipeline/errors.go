package pipeline

import (
	"errors"
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Sentinel errors for caller mistakes. These are never retried.
var (
	// ErrInvalidInput indicates a malformed start request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState indicates an operation against a run in an
	// incompatible state, e.g. continue on a run that is not paused.
	ErrInvalidState = errors.New("invalid state")
	// ErrRunNotFound indicates the run id is unknown.
	ErrRunNotFound = errors.New("run not found")
)

// PermanentError marks a failure retrying cannot fix, such as malformed
// input. The retry loop gives up on it immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as non-retryable. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// TransientError wraps a stage execution or gatekeeper failure that was
// retried up to the configured bound before escalating.
type TransientError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// QualityGateError is the terminal outcome when the gatekeeper keeps
// failing a stage and the round budget runs out. The audit trail records
// which issues blocked the run.
type QualityGateError struct {
	Stage          types.Stage
	Rounds         int
	BlockingIssues []string
}

func (e *QualityGateError) Error() string {
	return fmt.Sprintf("quality gate failed at %s after %d rounds: %v", e.Stage, e.Rounds, e.BlockingIssues)
}
