package version

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/version"
)

// Mocked out for unit testing.
var (
	stdout     io.Writer = os.Stdout
	loadConfig           = config.Load
	connect              = util.ConnectRemote
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version [HOST]",
		Short: "Print the local version of blogctl and the release on the host.",
		Long: "Print the local version of blogctl, and the release most\n" +
			"recently deployed to the host.",
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(ctx context.Context, args []string) error {
	fmt.Fprintf(stdout, "local version:  %s\n", version.Version)

	target, project, err := loadConfig(args)
	if err != nil {
		if len(args) == 0 {
			// Without a host, there's no release to describe.
			log.WithError(err).Debug("Failed to resolve host")
			return nil
		}
		return err
	}

	h, err := connect(ctx, target, project)
	if err != nil {
		return errors.WithContext(err, "connect to host")
	}
	defer h.Remote.Close()

	record, ok, err := h.ReadRelease(ctx)
	if err != nil {
		return errors.WithContext(err, "get remote release")
	}
	if !ok {
		fmt.Fprintln(stdout, "remote release: none (not deployed with blogctl)")
		return nil
	}

	commit := record.Commit
	if commit == "" {
		commit = "unknown commit"
	}
	if record.Dirty {
		commit += " (dirty)"
	}
	fmt.Fprintf(stdout, "remote release: %s\n", record.ID)
	fmt.Fprintf(stdout, "  commit:       %s\n", commit)
	fmt.Fprintf(stdout, "  deployed:     %s by %s\n",
		record.DeployedAt.Local().Format(time.RFC1123), record.DeployedBy)
	fmt.Fprintf(stdout, "  blogctl:      %s\n", record.Version)
	return nil
}
