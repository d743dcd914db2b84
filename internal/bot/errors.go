package bot

import "fmt"

// InitError reports the construction stage that failed. Construction is
// fail-fast: the first failing stage aborts startup.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string { return fmt.Sprintf("init %s: %v", e.Stage, e.Err) }

func (e *InitError) Unwrap() error { return e.Err }

// CollaboratorError names the component whose failure ended the session.
type CollaboratorError struct {
	Component string
	Err       error
}

func (e *CollaboratorError) Error() string { return fmt.Sprintf("%s: %v", e.Component, e.Err) }

func (e *CollaboratorError) Unwrap() error { return e.Err }
