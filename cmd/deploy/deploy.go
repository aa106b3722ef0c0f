package deploy

import (
	"context"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/host"
	"github.com/sidkik/blogctl/pkg/release"
	"github.com/sidkik/blogctl/pkg/steps"
)

// appFile must exist in the workspace for it to be deployed.
const appFile = "app.py"

// Mocked out for unit testing.
var (
	stdout       io.Writer = os.Stdout
	loadConfig             = config.Load
	connect                = util.Connect
	readGitState           = release.ReadGitState
)

type options struct {
	withData     bool
	skipInstall  bool
	requireClean bool
	dryRun       bool
}

// New creates a new `deploy` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "deploy [HOST]",
		Short: "Copy the blog's code to the host and restart it",
		Long: "Copy the blog's code to the host, install its dependencies, " +
			"and restart its service.\n" +
			"The posts and uploads on the host aren't touched unless " +
			"--with-data is set.",
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&opts.withData, "with-data", false,
		"Also copy the local posts and uploads to the host")
	cmd.Flags().BoolVar(&opts.skipInstall, "skip-install", false,
		"Don't run the install commands")
	cmd.Flags().BoolVar(&opts.requireClean, "require-clean", false,
		"Refuse to deploy a workspace with uncommitted changes")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false,
		"Print the steps without running them")
	return cmd
}

func run(ctx context.Context, args []string, opts options) error {
	target, project, err := loadConfig(args)
	if err != nil {
		return err
	}

	state, err := readGitState(target.Workspace)
	if err != nil {
		return errors.WithContext(err, "read git state")
	}
	if state.Dirty {
		if opts.requireClean {
			return errors.NewFriendlyError("%s has uncommitted changes.\n"+
				"Commit them, or deploy without --require-clean.", target.Workspace)
		}
		log.WithField("workspace", target.Workspace).Warn(
			"Deploying uncommitted changes")
	}

	if opts.dryRun {
		h, err := host.New(target, project, nil, nil)
		if err != nil {
			return err
		}
		steps.New(log.StandardLogger(), deploySteps(h, state, opts)...).DryRun(stdout)
		return nil
	}

	h, err := connect(ctx, target, project)
	if err != nil {
		return err
	}
	defer h.Remote.Close()

	seq := steps.New(log.WithField("host", target.Host), deploySteps(h, state, opts)...)
	if err := seq.Run(ctx); err != nil {
		return err
	}
	log.WithField("host", target.Host).Info("Deployed")
	return nil
}

func deploySteps(h host.Host, state release.GitState, opts options) []steps.Step {
	deploySteps := []steps.Step{
		h.CheckLocal(appFile),
		h.PrepareRemote(),
		h.PushCode(),
	}

	if opts.withData {
		deploySteps = append(deploySteps, h.CheckLocalPosts(), h.BackupRemotePosts())
		deploySteps = append(deploySteps, h.PushData(false)...)
	}

	install := h.Install()
	install.Skip = install.Skip || opts.skipInstall
	deploySteps = append(deploySteps, install)
	deploySteps = append(deploySteps, h.Restart()...)
	return append(deploySteps, h.WriteRelease(state))
}
