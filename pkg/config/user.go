package config

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/blogctl/pkg/errors"
)

const (
	// UserConfigPath is the default path to the blogctl user config.
	UserConfigPath = "~/.blogctl.yaml"

	// InitialUserConfigVersion is the first version of the blogctl
	// user config. Config files that do not specify a version
	// will default to this version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the supported version of the
	// blogctl user config of the current blogctl binary.
	SupportedUserConfigVersion = "v1alpha1"
)

// User contains the operator's settings for reaching the blog host.
type User struct {
	Version    string `json:"version,omitempty"`
	Host       string `json:"host"`
	RemotePath string `json:"remotePath,omitempty"`
	Service    string `json:"service,omitempty"`
	Workspace  string `json:"workspace,omitempty"`
}

func (u User) getVersion() string {
	return u.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser attempts to parse the User stored in the default path.
func ParseUser() (User, error) {
	config, path, err := parseUser()
	if err != nil {
		if _, ok := errors.RootCause(err).(errors.FileNotFound); ok {
			return User{}, errors.NewFriendlyError("The blogctl user config "+
				"file doesn't exist at %q. Please run `blogctl config` in your "+
				"blog directory to create the user config file.", path)
		}
		return User{}, err
	}
	return config, nil
}

func parseUser() (User, string, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, "", errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := decodeFile(path, &config, SupportedUserConfigVersion); err != nil {
		return User{}, path, errors.WithContext(err, "parse")
	}

	config.Workspace, err = homedir.Expand(config.Workspace)
	if err != nil {
		return User{}, path, errors.WithContext(err, "expand workspace path")
	}

	// Evaluate relative paths relative to the config path.
	if config.Workspace != "" && !filepath.IsAbs(config.Workspace) {
		config.Workspace = filepath.Join(filepath.Dir(path), config.Workspace)
	}
	return config, path, nil
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath gets the path to the user's global blogctl configuration.
// This path is expanded, so it can be directly passed to file operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}
