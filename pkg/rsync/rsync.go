package rsync

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"

	version "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/blogctl/pkg/errors"
)

// statsVersion is the first rsync release that supports `--info`.
var statsVersion = version.Must(version.NewVersion("3.1.0"))

// Mocked out for unit testing.
var (
	execCommand = exec.CommandContext
	lookPath    = exec.LookPath
)

// Transfer describes a single rsync invocation.
type Transfer struct {
	// Source and Dest are rsync paths. Remote paths have the form
	// "host:path".
	Source string
	Dest   string

	// Shell is the remote shell, e.g. "ssh -p 2222".
	Shell string

	Excludes []string

	// Delete removes files from Dest that don't exist in Source.
	Delete bool

	// DryRun lists what would be transferred without changing anything.
	DryRun bool
}

// Client runs transfers.
type Client interface {
	Run(ctx context.Context, t Transfer) ([]byte, error)
}

// Runner runs transfers with the local rsync binary.
type Runner struct {
	path         string
	supportsInfo bool
}

var versionPattern = regexp.MustCompile(`rsync\s+version\s+v?([0-9]+(\.[0-9]+)*)`)

// New finds rsync on the PATH and checks its version.
func New(ctx context.Context) (Runner, error) {
	path, err := lookPath("rsync")
	if err != nil {
		return Runner{}, errors.NewFriendlyError("rsync isn't installed, " +
			"or isn't on the PATH.\nInstall it with your package manager, " +
			"and make sure it's also installed on the blog host.")
	}

	out, err := execCommand(ctx, path, "--version").Output()
	if err != nil {
		return Runner{}, errors.WithContext(err, "get rsync version")
	}

	v, err := parseVersion(out)
	if err != nil {
		log.WithError(err).Debug("Failed to parse rsync version. Assuming an old release.")
		return Runner{path: path}, nil
	}

	log.WithField("version", v.String()).Debug("Found rsync")
	return Runner{path: path, supportsInfo: !v.LessThan(statsVersion)}, nil
}

func parseVersion(out []byte) (*version.Version, error) {
	match := versionPattern.FindSubmatch(out)
	if match == nil {
		return nil, errors.New("no version in rsync output")
	}
	return version.NewVersion(string(match[1]))
}

// Args returns the arguments rsync is invoked with for the transfer.
func (r Runner) Args(t Transfer) []string {
	args := []string{"-az"}
	if r.supportsInfo {
		args = append(args, "--info=stats1")
	}
	if t.Shell != "" {
		args = append(args, "-e", t.Shell)
	}
	if t.Delete {
		args = append(args, "--delete")
	}
	if t.DryRun {
		args = append(args, "--dry-run", "--itemize-changes")
	}
	for _, exclude := range t.Excludes {
		args = append(args, "--exclude="+exclude)
	}
	return append(args, t.Source, t.Dest)
}

// Run runs the transfer, and returns rsync's output.
func (r Runner) Run(ctx context.Context, t Transfer) ([]byte, error) {
	args := r.Args(t)
	logger := log.WithFields(log.Fields{
		"src": t.Source,
		"dst": t.Dest,
	})
	logger.Debugf("Running rsync %s", strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := execCommand(ctx, r.path, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if len(out) != 0 {
		logger.Debug(string(out))
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return out, errors.WithContext(err, "rsync")
		}
		return out, errors.WithContext(errors.New(msg), "rsync "+err.Error())
	}
	return out, nil
}
