package logs

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/host"
	"github.com/sidkik/blogctl/pkg/remote"
)

// Mocked out for unit testing.
var (
	stdout     io.Writer = os.Stdout
	stderr     io.Writer = os.Stderr
	loadConfig           = config.Load
	connect              = util.ConnectRemote
)

type options struct {
	follow bool
	lines  int
}

// New creates a new `logs` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "logs [HOST]",
		Short: "Print the logs of the blog's service",
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false,
		"Keep printing new log lines")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 100,
		"The number of past lines to print")
	return cmd
}

func run(ctx context.Context, args []string, opts options) error {
	target, project, err := loadConfig(args)
	if err != nil {
		return err
	}

	h, err := connect(ctx, target, project)
	if err != nil {
		return err
	}
	defer h.Remote.Close()

	err = h.Remote.Stream(ctx, journalCommand(h, opts), stdout, stderr)
	if err != nil && ctx.Err() != nil {
		// Interrupting `--follow` is the normal way to stop it.
		return nil
	}
	if _, ok := errors.RootCause(err).(errors.RemoteCommandError); ok {
		return errors.NewFriendlyError("Failed to read the logs of %s on %s.\n"+
			"The remote user may need to be in the systemd-journal group.",
			target.Service, target.Host)
	}
	return err
}

func journalCommand(h host.Host, opts options) string {
	command := fmt.Sprintf("journalctl --no-pager -u %s -n %d",
		remote.Quote(h.Target.Service), opts.lines)
	if opts.follow {
		command += " --follow"
	}
	return command
}
