package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/remote"
)

// appFile marks a directory as a checkout of the blog.
const appFile = "app.py"

// Mocked for unit testing.
var (
	stdout              io.Writer = os.Stdout
	stdin               io.Reader = os.Stdin
	guessDefaults                 = guessDefaultsImpl
	parseUserConfig               = config.ParseUser
	writeUserConfig               = config.WriteUser
	stat                          = os.Stat
	getenv                        = os.Getenv
	getWorkingDirectory           = os.Getwd
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the blogctl user configuration",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.Host, "host", "",
		"Set the host the blog is deployed to, as [user@]host[:port]. "+
			"Optional: If not set, `blogctl config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.RemotePath, "remote-path", "",
		"Set the directory the blog lives in on the host. "+
			"Optional: If not set, `blogctl config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Workspace, "workspace", "",
		"Set the local checkout of the blog. "+
			"Optional: If not set, `blogctl config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Service, "service", "",
		"Set the systemd service that runs the blog. "+
			"Optional: If not set, the current value or the project's value is used.")

	// Setup the commands for querying the contents of the user config.
	type getterSpec struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterSpec{
		{
			use:   "get-host",
			short: "Get the currently configured blog host",
			fn:    func(cfg config.User) string { return cfg.Host },
		},
		{
			use:   "get-remote-path",
			short: "Get the currently configured remote path",
			fn: func(cfg config.User) string {
				if cfg.RemotePath == "" {
					return config.DefaultRemotePath
				}
				return cfg.RemotePath
			},
		},
		{
			use:   "get-workspace",
			short: "Get the currently configured workspace",
			fn:    func(cfg config.User) string { return cfg.Workspace },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

// SetupConfig prompts for the settings missing from `cliOpts`, and writes the
// result to the user config.
func SetupConfig(cliOpts config.User) error {
	cfg, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeUserConfig(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func hostValidationFn(host string) (string, bool) {
	if _, err := remote.ParseAddress(host); err != nil {
		if msg, ok := errors.GetFriendlyMessage(err); ok {
			return msg, false
		}
		return "The host must have the form [user@]host[:port], or be an " +
			"alias from ~/.ssh/config.", false
	}
	return "", true
}

func remotePathValidationFn(path string) (string, bool) {
	if path == "" {
		return "The remote path can't be empty.", false
	}
	if path == "/" || path == "~" || path == "~/" {
		return "The blog can't be deployed to the root of the filesystem or " +
			"the home directory, since deploys remove files that aren't " +
			"in the workspace. Please pick a subdirectory.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is.
// It makes best guesses at reasonable defaults, and allows users to explicitly
// override them if desired.
func generateConfig(cliOpts config.User) (config.User, error) {
	defaults := guessDefaults()
	currConfig, err := parseUserConfig()
	if err != nil {
		currConfig = config.User{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg := cliOpts
	if cfg.Service == "" {
		cfg.Service = currConfig.Service
	}

	var prompts []prompt
	if cliOpts.Host == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the SSH host the blog is deployed to.\n" +
				"It has the form [user@]host[:port], and may be an alias from ~/.ssh/config.",
			prompt:        "Blog host",
			defaultAnswer: defaults.Host,
			currAnswer:    currConfig.Host,
			field:         &cfg.Host,
			validationFn:  hostValidationFn,
		})
	}

	if cliOpts.RemotePath == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the directory the blog lives in on the host.\n" +
				"Paths starting with ~/ are relative to the login user's home directory.",
			prompt:        "Remote path",
			defaultAnswer: defaults.RemotePath,
			currAnswer:    currConfig.RemotePath,
			field:         &cfg.RemotePath,
			validationFn:  remotePathValidationFn,
		})
	}

	if cliOpts.Workspace == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the path to the local checkout of the blog.\n" +
				"It defaults to the current directory if it contains " + appFile + ".",
			prompt:        "Path to the blog",
			defaultAnswer: defaults.Workspace,
			currAnswer:    currConfig.Workspace,
			field:         &cfg.Workspace,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.User{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	return cfg, nil
}

// guessDefaults tries to guess reasonable defaults for the fields in the user
// config.
func guessDefaultsImpl() (cfg config.User) {
	cfg.Host = getenv(config.HostEnvKey)
	cfg.RemotePath = config.DefaultRemotePath

	if workspace, err := guessWorkspace(); err == nil {
		cfg.Workspace = workspace
	} else {
		log.WithError(err).Info("Failed to guess workspace")
	}

	return cfg
}

// guessWorkspace returns the current directory if it contains the blog app.
func guessWorkspace() (string, error) {
	currDir, err := getWorkingDirectory()
	if err != nil {
		return "", errors.WithContext(err, "get current directory")
	}

	if _, err := stat(filepath.Join(currDir, appFile)); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.WithContext(err, "stat")
	}
	return currDir, nil
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Separate the fields with a blank line.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)
	if nOptions := len(options); nOptions > 1 {
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			choice := 1
			if choiceStr = strings.TrimSpace(choiceStr); choiceStr != "" {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					continue
				}
			}

			if choice == nOptions {
				break
			}
			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp), nil
}
