package pipeline

import "fmt"

// Stage names the pipeline step that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageVoice    Stage = "voice"
	StageText     Stage = "text"
	StageOutput   Stage = "output"
	StageSpeech   Stage = "speech"
)

// Error reports which stage of a job failed.
type Error struct {
	Stage Stage
	JobID string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

func stageErr(stage Stage, jobID string, err error) error {
	return &Error{Stage: stage, JobID: jobID, Cause: err}
}
