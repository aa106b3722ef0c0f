package pull

import (
	"context"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/host"
	"github.com/sidkik/blogctl/pkg/steps"
)

// Mocked out for unit testing.
var (
	stdout     io.Writer = os.Stdout
	loadConfig           = config.Load
	connect              = util.Connect
)

type options struct {
	deleteExtra bool
	noBackup    bool
	dryRun      bool
}

// New creates a new `pull` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "pull [HOST]",
		Short: "Copy the posts and uploads from the host into the workspace",
		Long: "Copy the posts and uploads from the host into the workspace. " +
			"The local posts are backed up first.",
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&opts.deleteExtra, "delete", false,
		"Remove local uploads that don't exist on the host")
	cmd.Flags().BoolVar(&opts.noBackup, "no-backup", false,
		"Don't back up the local posts")
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
		steps.New(log.StandardLogger(), pullSteps(h, opts)...).DryRun(stdout)
		return nil
	}

	h, err := connect(ctx, target, project)
	if err != nil {
		return err
	}
	defer h.Remote.Close()

	logger := log.WithField("host", target.Host)
	if err := steps.New(logger, pullSteps(h, opts)...).Run(ctx); err != nil {
		return err
	}
	logger.Info("Pulled")
	return nil
}

func pullSteps(h host.Host, opts options) []steps.Step {
	backup := h.BackupLocalPosts()
	backup.Skip = opts.noBackup

	pullSteps := []steps.Step{
		h.CheckRemote(config.PostsFile),
		backup,
	}
	return append(pullSteps, h.PullData(opts.deleteExtra)...)
}
