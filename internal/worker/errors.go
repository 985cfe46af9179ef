package worker

import "errors"

// Stages used as the "stage" label of grocybot_worker_errors_total.
const (
	StageRun      = "run"
	StageFetch    = "fetch"
	StageIdentity = "identity"
	StageCallback = "callback"
	StagePanic    = "panic"
)

// StageError tags an error with the stage of a run that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// WithStage wraps err with stage. A nil err stays nil.
func WithStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or StageRun when none is.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) && se.Stage != "" {
		return se.Stage
	}
	return StageRun
}
