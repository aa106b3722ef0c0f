package config

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/blogctl/pkg/errors"
)

const (
	// DefaultRemotePath is where the blog lives on the host when neither the
	// user config nor the environment says otherwise.
	DefaultRemotePath = "~/blog"

	// DefaultService is the systemd unit that runs the blog.
	DefaultService = "blog"

	// HostEnvKey overrides the host from the user config.
	HostEnvKey = "BLOGCTL_HOST"

	// RemotePathEnvKey overrides the remote path from the user config.
	RemotePathEnvKey = "BLOGCTL_REMOTE_PATH"

	// ServiceEnvKey overrides the service name.
	ServiceEnvKey = "BLOGCTL_SERVICE"

	// EnvFile is loaded from the working directory before resolving the
	// target. Variables already set in the environment take precedence.
	EnvFile = ".env"
)

// ErrTooManyHosts is returned when more than one host is passed on the
// command line.
var ErrTooManyHosts = errors.NewFriendlyError(
	"Only one host may be specified. Run the command once per host.")

// Target is the fully resolved destination of a command.
type Target struct {
	// Host is an SSH destination of the form [user@]host[:port], or an
	// alias from ~/.ssh/config.
	Host string

	// RemotePath is the directory the blog lives in on the host.
	RemotePath string

	// Service is the systemd unit that runs the blog.
	Service string

	// Workspace is the local checkout of the blog.
	Workspace string
}

// loadEnvFile is mocked out for unit testing.
var loadEnvFile = func() error {
	return godotenv.Load(EnvFile)
}

// Load resolves the target and project config for a command invoked with the
// given positional arguments.
func Load(args []string) (Target, Project, error) {
	if err := loadEnvFile(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("Failed to load %s", EnvFile)
	}

	user, _, err := parseUser()
	if err != nil {
		if _, ok := errors.RootCause(err).(errors.FileNotFound); !ok {
			return Target{}, Project{}, errors.WithContext(err, "parse user config")
		}
		user = User{}
	}

	workspace := user.Workspace
	if workspace == "" {
		workspace, err = getWorkingDirectory()
		if err != nil {
			return Target{}, Project{}, errors.WithContext(err, "get working directory")
		}
	}

	project, err := ParseProject(workspace)
	if err != nil {
		return Target{}, Project{}, errors.WithContext(err, "parse project config")
	}

	target, err := ResolveTarget(args, user, project)
	if err != nil {
		return Target{}, Project{}, err
	}
	target.Workspace = workspace
	return target, project, nil
}

// ResolveTarget picks the host, remote path, and service. The host comes from
// the positional argument, then the environment, then the user config. The
// other fields come from the environment, then the user config, then the
// project config, then the defaults.
func ResolveTarget(args []string, user User, project Project) (Target, error) {
	if len(args) > 1 {
		return Target{}, ErrTooManyHosts
	}

	var host string
	if len(args) == 1 {
		host = args[0]
	}

	target := Target{
		Host:       firstNonEmpty(host, getenv(HostEnvKey), user.Host),
		RemotePath: firstNonEmpty(getenv(RemotePathEnvKey), user.RemotePath, DefaultRemotePath),
		Service:    firstNonEmpty(getenv(ServiceEnvKey), user.Service, project.Service, DefaultService),
	}
	if target.Host == "" {
		return Target{}, errors.NewFriendlyError("No host to connect to.\n" +
			"Pass the host as an argument, set " + HostEnvKey + ", or run " +
			"`blogctl config --host <host>` to save a default.")
	}
	return target, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
