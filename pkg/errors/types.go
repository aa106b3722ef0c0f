package errors

import (
	"fmt"
)

// ErrDifferences is returned by `blogctl diff --exit-code` when the workspace
// and the host differ. The diff has already been printed, so it's reported
// only through the exit status.
var ErrDifferences = New("the workspace and the host differ")

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// RemoteCommandError is returned when a command run over SSH exits with a
// non-zero status.
type RemoteCommandError struct {
	Command    string
	ExitStatus int
	Stderr     string
}

func (err RemoteCommandError) Error() string {
	if err.Stderr == "" {
		return fmt.Sprintf("remote command %q exited with status %d",
			err.Command, err.ExitStatus)
	}
	return fmt.Sprintf("remote command %q exited with status %d: %s",
		err.Command, err.ExitStatus, err.Stderr)
}
