package diff

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/buger/goterm"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/posts"
	"github.com/sidkik/blogctl/pkg/sync"
)

// Mocked out for unit testing.
var (
	stdout           io.Writer = os.Stdout
	stdoutIsTerminal           = func() bool { return terminal.IsTerminal(int(os.Stdout.Fd())) }
	loadConfig                 = config.Load
	connect                    = util.ConnectRemote
)

type options struct {
	exitCode bool
	noColor  bool
}

// New creates a new `diff` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "diff [HOST]",
		Short: "Show how the local posts and uploads differ from the host's",
		Long: "Compare the local posts and uploads with the ones on the host.\n" +
			"Posts are matched by slug. Lines prefixed with `+` are local, " +
			"and lines prefixed with `-` are on the host.",
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&opts.exitCode, "exit-code", false,
		"Exit with status 1 if there are differences")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false,
		"Don't colour the output")
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

	report, err := h.Compare(ctx)
	if err != nil {
		return errors.WithContext(err, "compare")
	}

	if report.Empty() {
		fmt.Fprintln(stdout, "No differences.")
		return nil
	}

	color := !opts.noColor && stdoutIsTerminal()
	renderer := posts.Renderer{Out: stdout, Color: color}
	if err := renderer.Render(report.Posts); err != nil {
		return errors.WithContext(err, "print posts diff")
	}
	printFiles(stdout, report.Files, color)

	if opts.exitCode {
		return errors.ErrDifferences
	}
	return nil
}

func printFiles(out io.Writer, changes sync.Changes, color bool) {
	colorize := func(s string, c int) string {
		if !color {
			return s
		}
		return goterm.Color(s, c)
	}

	for _, path := range changes.OnlyLocal {
		fmt.Fprintln(out, colorize("+ "+path+": only local", goterm.GREEN))
	}
	for _, path := range changes.OnlyRemote {
		fmt.Fprintln(out, colorize("- "+path+": only on the host", goterm.RED))
	}
	for _, path := range changes.Changed {
		fmt.Fprintln(out, colorize("~ "+path+": changed", goterm.YELLOW))
	}
}
