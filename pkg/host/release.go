package host

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/release"
	"github.com/sidkik/blogctl/pkg/steps"
)

// WriteRelease records the deploy on the host.
func (h Host) WriteRelease(state release.GitState) steps.Step {
	return steps.Step{
		Name: "record release",
		Run: func(ctx context.Context) error {
			record := release.New(h.Clock, state)
			contents, err := record.Marshal()
			if err != nil {
				return err
			}

			if _, err := h.Remote.Run(ctx, release.WriteCommand(h.Target.RemotePath, contents)); err != nil {
				return err
			}
			log.WithFields(log.Fields{
				"release": record.ID,
				"commit":  record.Commit,
			}).Info("Recorded release")
			return nil
		},
	}
}

// ReadRelease returns the record of the last deploy. The boolean is false if
// the blog was never deployed by blogctl.
func (h Host) ReadRelease(ctx context.Context) (release.Record, bool, error) {
	out, err := h.Remote.Run(ctx, release.ReadCommand(h.Target.RemotePath))
	if err != nil {
		if _, ok := errors.RootCause(err).(errors.RemoteCommandError); ok {
			return release.Record{}, false, nil
		}
		return release.Record{}, false, errors.WithContext(err, "read release record")
	}

	record, err := release.Parse(out)
	if err != nil {
		return release.Record{}, false, err
	}
	return record, true, nil
}
