package ssh

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/host"
	"github.com/sidkik/blogctl/pkg/remote"
)

// Mocked out for unit testing.
var (
	loadConfig    = config.Load
	connect       = util.ConnectRemote
	isTerminal    = terminal.IsTerminal
	makeRaw       = terminal.MakeRaw
	restore       = terminal.Restore
	getSize       = terminal.GetSize
	stdinFd       = int(os.Stdin.Fd())
	defaultWidth  = 80
	defaultHeight = 24
)

// New creates a new `ssh` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "ssh [HOST]",
		Short: "Get a shell in the blog's directory on the host",
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
	if !isTerminal(stdinFd) {
		return errors.NewFriendlyError("`blogctl ssh` must be run from a terminal.")
	}

	target, project, err := loadConfig(args)
	if err != nil {
		return err
	}

	h, err := connect(ctx, target, project)
	if err != nil {
		return err
	}
	defer h.Remote.Close()

	width, height, err := getSize(stdinFd)
	if err != nil {
		log.WithError(err).Debug("Failed to get terminal size")
		width, height = defaultWidth, defaultHeight
	}

	// Put the terminal into raw mode to prevent it echoing characters twice.
	oldState, err := makeRaw(stdinFd)
	if err != nil {
		return errors.WithContext(err, "set terminal mode")
	}
	defer func() {
		_ = restore(stdinFd, oldState)
	}()

	err = h.Remote.Shell(ctx, shellCommand(h), width, height)
	if _, ok := errors.RootCause(err).(errors.RemoteCommandError); ok {
		// The exit status of the last command run in the shell.
		return nil
	}
	return err
}

func shellCommand(h host.Host) string {
	return "cd " + remote.QuotePath(h.Target.RemotePath) + ` && exec "${SHELL:-sh}" -l`
}
