package config

import (
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/blogctl/pkg/errors"
)

const (
	// ProjectConfigName is the name of the optional per-blog config file,
	// looked up in the root of the workspace.
	ProjectConfigName = "blogctl.yaml"

	// InitialProjectConfigVersion is the first version of the project
	// config. Config files that do not specify a version will default to
	// this version.
	InitialProjectConfigVersion = "v1alpha1"

	// SupportedProjectConfigVersion is the supported version of the
	// project config of the current blogctl binary.
	SupportedProjectConfigVersion = "v1alpha1"

	// PostsFile is where the blog app keeps its posts, relative to the
	// workspace and the remote path.
	PostsFile = "data/posts.json"

	// UploadsDir is where the blog app keeps uploaded images.
	UploadsDir = "uploads"

	// BackupsDir holds timestamped copies of the posts file taken before
	// it is overwritten by a sync or pull.
	BackupsDir = "data/backups"
)

// Project describes how a blog checkout is shipped to its host.
type Project struct {
	Version string `json:"version,omitempty"`

	// Service is the systemd unit restarted after a deploy.
	Service string `json:"service,omitempty"`

	// Exclude lists extra rsync patterns that are never shipped with the
	// code tree.
	Exclude []string `json:"exclude,omitempty"`

	// Install lists shell commands run in the remote path after the code
	// is copied, and before the service is restarted.
	Install []string `json:"install,omitempty"`

	// Data lists the content owned by the blog app that `sync`, `pull` and
	// `diff` operate on.
	Data []SyncRule `json:"data,omitempty"`

	// Only populated and consumed by blogctl. Never set by user.
	path string
}

// SyncRule defines a path that's copied between the workspace and the remote
// path.
type SyncRule struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Except []string `json:"except,omitempty"`
}

// GetPath returns the filepath that the project was parsed from. It's empty
// if the defaults were used.
func (c Project) GetPath() string {
	return c.path
}

func (c Project) getVersion() string {
	return c.Version
}

// DefaultDataRules are the paths synced when the project config doesn't
// override them.
var DefaultDataRules = []SyncRule{
	{From: PostsFile, To: PostsFile},
	{From: UploadsDir, To: UploadsDir},
}

// DefaultInstall prepares the Python environment the blog app runs in.
var DefaultInstall = []string{
	"test -d .venv || python3 -m venv .venv",
	"if [ -f requirements.txt ]; then .venv/bin/pip install -q -r requirements.txt; fi",
}

// alwaysExcluded is never shipped with the code tree. The data and uploads
// belong to the running blog and are moved by `sync` and `pull` instead.
// `.blogctl/` holds the release record, which must survive the `--delete`
// of the code push until the new record is written.
var alwaysExcluded = []string{
	"/data/", "/uploads/", "/.blogctl/", ".git/", ".venv/", "__pycache__/",
	"*.pyc", ".env", ".DS_Store", "/" + ProjectConfigName,
}

var alwaysIgnored = []string{".DS_Store"}

// ParseProject parses the project config in the workspace at `path`. A
// missing config file isn't an error: the defaults are returned instead.
func ParseProject(path string) (Project, error) {
	configPath := filepath.Join(path, ProjectConfigName)
	config := Project{
		path:    configPath,
		Version: InitialProjectConfigVersion,
	}
	if err := decodeFile(configPath, &config, SupportedProjectConfigVersion); err != nil {
		if _, ok := errors.RootCause(err).(errors.FileNotFound); !ok {
			return Project{}, errors.WithContext(err, "parse")
		}
		log.WithField("path", configPath).Debug("No project config. Using defaults.")
		config = Project{Version: SupportedProjectConfigVersion}
	}

	if len(config.Data) == 0 {
		config.Data = append([]SyncRule{}, DefaultDataRules...)
	}
	if config.Install == nil {
		config.Install = DefaultInstall
	}

	var cleanedRules []SyncRule
	for _, rule := range config.Data {
		if rule.From == "" {
			return Project{}, errors.NewFriendlyError(
				"A data rule in %q is missing the `from` field.", configPath)
		}
		if rule.To == "" {
			rule.To = rule.From
		}
		if filepath.IsAbs(rule.To) {
			return Project{}, errors.NewFriendlyError(
				"The data rule for %q in %q has an absolute destination.\n"+
					"Destinations are relative to the remote path.",
				rule.From, configPath)
		}

		rule.Except = append(append([]string{}, rule.Except...), alwaysIgnored...)
		rule.From = filepath.Clean(rule.From)
		rule.To = filepath.Clean(rule.To)
		for i, exception := range rule.Except {
			rule.Except[i] = filepath.Clean(exception)
		}
		cleanedRules = append(cleanedRules, rule)
	}
	config.Data = cleanedRules
	return config, nil
}

// CodeExcludes returns the rsync exclude patterns for the code tree.
func (c Project) CodeExcludes() []string {
	return append(append([]string{}, alwaysExcluded...), c.Exclude...)
}
