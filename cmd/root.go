package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/blogctl/cmd/bugtool"
	configCmd "github.com/sidkik/blogctl/cmd/config"
	"github.com/sidkik/blogctl/cmd/deploy"
	"github.com/sidkik/blogctl/cmd/diff"
	"github.com/sidkik/blogctl/cmd/logs"
	"github.com/sidkik/blogctl/cmd/pull"
	"github.com/sidkik/blogctl/cmd/ssh"
	syncCmd "github.com/sidkik/blogctl/cmd/sync"
	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "BLOGCTL_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	if err := newRootCommand().Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "blogctl",
		Short:        "Deploy the blog, and move its posts and uploads between the workspace and the host",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		bugtool.New(),
		configCmd.New(),
		deploy.New(),
		diff.New(),
		logs.New(),
		pull.New(),
		ssh.New(),
		syncCmd.New(),
		version.New(),
	)
	return rootCmd
}
