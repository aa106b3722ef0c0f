// Package steps runs a command as a fixed sequence of named steps. The first
// step that fails aborts the sequence.
package steps

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sidkik/blogctl/pkg/errors"
)

// Step is a single unit of work in a Sequence.
type Step struct {
	// Name is a short description of what the step does, such as
	// "restart service". It prefixes the error if the step fails.
	Name string

	// Skip disables the step without removing it from the listing.
	Skip bool

	Run func(ctx context.Context) error
}

// Sequence is an ordered list of steps.
type Sequence struct {
	Steps []Step
	Log   logrus.FieldLogger

	// now is mocked out for unit testing.
	now func() time.Time
}

// New creates a Sequence that logs to `log`.
func New(log logrus.FieldLogger, steps ...Step) *Sequence {
	return &Sequence{Steps: steps, Log: log, now: time.Now}
}

// Add appends steps to the sequence.
func (s *Sequence) Add(steps ...Step) {
	s.Steps = append(s.Steps, steps...)
}

// Run runs each step in order. It stops at the first error, or when the
// context is cancelled.
func (s *Sequence) Run(ctx context.Context) error {
	for i, step := range s.Steps {
		logger := s.Log.WithField("step", step.Name)
		if step.Skip {
			logger.Debug("Skipping step")
			continue
		}

		if err := ctx.Err(); err != nil {
			return errors.WithContext(err, step.Name)
		}

		logger.Debugf("Starting step %d of %d", i+1, len(s.Steps))
		start := s.now()
		if err := step.Run(ctx); err != nil {
			return errors.WithContext(err, step.Name)
		}
		logger.WithField("elapsed", s.now().Sub(start).Round(time.Millisecond)).Info("Done")
	}
	return nil
}

// DryRun writes the steps that would run to `out`.
func (s *Sequence) DryRun(out io.Writer) {
	for i, step := range s.Steps {
		status := ""
		if step.Skip {
			status = " (skipped)"
		}
		fmt.Fprintf(out, "%d. %s%s\n", i+1, step.Name, status)
	}
}
