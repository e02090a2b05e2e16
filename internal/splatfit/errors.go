package splatfit

import "fmt"

// UnknownAttributeError reports an attribute name absent from the model's
// raw-field table. The name is always preserved; lookups never fall back
// to a default.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q", e.Name)
}

// PipelineStageError wraps a failure from one rendering stage. It
// propagates unmodified to the training loop, which aborts the run.
type PipelineStageError struct {
	Stage string
	Err   error
}

func (e *PipelineStageError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineStageError) Unwrap() error { return e.Err }

func stageErrf(stage, format string, args ...interface{}) error {
	return &PipelineStageError{Stage: stage, Err: fmt.Errorf(format, args...)}
}

// ConfigurationError reports an invalid configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
