package weightpress

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEpochs is returned when a non-positive epoch count is configured.
	ErrInvalidEpochs = errors.New("epochs must be positive")
	// ErrNoOutput is returned when no output directory or blob store is configured.
	ErrNoOutput = errors.New("no output destination configured")
)

// ErrStageFailed indicates which pipeline stage failed.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrStageFailed struct {
	Stage string
	cause error
}

func (e *ErrStageFailed) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.cause)
}

func (e *ErrStageFailed) Unwrap() error { return e.cause }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &ErrStageFailed{Stage: stage, cause: err}
}
