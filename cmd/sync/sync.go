package sync

import (
	"context"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/fswatch"
	"github.com/sidkik/blogctl/pkg/host"
	"github.com/sidkik/blogctl/pkg/steps"
)

// pollInterval is how often the files are pushed while watching, even if no
// change was noticed. Some editors replace files in ways that fsnotify
// misses.
const pollInterval = 15 * time.Second

// Mocked out for unit testing.
var (
	stdout     io.Writer = os.Stdout
	loadConfig           = config.Load
	connect              = util.Connect
	watchFiles           = func(rules []config.SyncRule, dir string) (<-chan struct{}, io.Closer, error) {
		w, err := fswatch.Watch(rules, dir)
		if err != nil {
			return nil, nil, err
		}
		return w.Changes, w, nil
	}
)

type options struct {
	watch       bool
	noBackup    bool
	deleteExtra bool
	dryRun      bool
}

// New creates a new `sync` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "sync [HOST]",
		Short: "Copy the local posts and uploads to the host",
		Long: "Copy the local posts and uploads to the host. The posts on " +
			"the host are backed up first.\n" +
			"With --watch, the files are copied again whenever they change.",
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false,
		"Keep copying the files as they change")
	cmd.Flags().BoolVar(&opts.noBackup, "no-backup", false,
		"Don't back up the posts on the host")
	cmd.Flags().BoolVar(&opts.deleteExtra, "delete", false,
		"Remove uploads from the host that don't exist locally")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false,
		"Print the steps without running them")
	return cmd
}

func run(ctx context.Context, args []string, opts options) error {
	target, project, err := loadConfig(args)
	if err != nil {
		return err
	}

	if opts.dryRun {
		h, err := host.New(target, project, nil, nil)
		if err != nil {
			return err
		}
		steps.New(log.StandardLogger(), syncSteps(h, opts)...).DryRun(stdout)
		return nil
	}

	h, err := connect(ctx, target, project)
	if err != nil {
		return err
	}
	defer h.Remote.Close()

	logger := log.WithField("host", target.Host)
	if err := steps.New(logger, syncSteps(h, opts)...).Run(ctx); err != nil {
		return err
	}
	logger.Info("Synced")

	if !opts.watch {
		return nil
	}
	return watch(ctx, h, opts)
}

func syncSteps(h host.Host, opts options) []steps.Step {
	backup := h.BackupRemotePosts()
	backup.Skip = opts.noBackup

	syncSteps := []steps.Step{
		h.CheckLocalPosts(),
		h.PrepareRemote(),
		backup,
	}
	return append(syncSteps, h.PushData(opts.deleteExtra)...)
}

// watch pushes the data rules whenever they change, until the context is
// cancelled.
func watch(ctx context.Context, h host.Host, opts options) error {
	changes, watcher, err := watchFiles(h.Project.Data, h.Target.Workspace)
	if err != nil {
		return errors.WithContext(err, "watch files")
	}
	defer watcher.Close()

	logger := log.WithField("host", h.Target.Host)
	logger.Info("Watching for changes. Press Ctrl-C to stop.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return errors.New("file watcher stopped")
			}
			logger.Debug("Files changed")
		case <-h.Clock.After(pollInterval):
			logger.Debug("Polling")
		}

		if err := steps.New(logger, h.PushData(opts.deleteExtra)...).Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
