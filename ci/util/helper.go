package util

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/remote"
)

// TestHelper contains methods commonly used during integration tests.
type TestHelper struct {
	// Host is the blog host that the tests deploy to. It must be reachable
	// with the SSH credentials of the user running the tests, and run a
	// systemd unit named `Service`.
	Host       string
	RemotePath string
	Service    string

	// Workspace is a scratch checkout of the blog.
	Workspace string

	remote remote.Client
}

// NewTestHelper creates a new TestHelper with a fresh workspace.
func NewTestHelper(ctx context.Context, host, remotePath, service string) (*TestHelper, error) {
	workspace, err := ioutil.TempDir("", "blogctl-ci")
	if err != nil {
		return nil, errors.WithContext(err, "create workspace")
	}

	remoteClient, err := remote.Dial(ctx, host)
	if err != nil {
		return nil, errors.WithContext(err, "connect")
	}

	return &TestHelper{
		Host:       host,
		RemotePath: remotePath,
		Service:    service,
		Workspace:  workspace,
		remote:     remoteClient,
	}, nil
}

// Close removes the workspace and disconnects from the host.
func (helper *TestHelper) Close() {
	if err := os.RemoveAll(helper.Workspace); err != nil {
		log.WithError(err).Warn("Failed to remove workspace")
	}
	if err := helper.remote.Close(); err != nil {
		log.WithError(err).Warn("Failed to disconnect")
	}
}

// Run runs the given blogctl command from within the workspace, and returns
// its stdout.
func (helper *TestHelper) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "blogctl", args...)
	cmd.Dir = helper.Workspace
	cmd.Env = append(os.Environ(),
		config.HostEnvKey+"="+helper.Host,
		config.RemotePathEnvKey+"="+helper.RemotePath,
		config.ServiceEnvKey+"="+helper.Service,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("blogctl %v (%s): stderr: %s", args, err, stderr.String())
	}
	return out, nil
}

// Remote runs a shell command from within the remote path.
func (helper *TestHelper) Remote(ctx context.Context, command string) ([]byte, error) {
	return helper.remote.Run(ctx, "cd "+remote.QuotePath(helper.RemotePath)+" && "+command)
}

// WriteFile writes a file into the workspace.
func (helper *TestHelper) WriteFile(path, contents string) error {
	path = filepath.Join(helper.Workspace, path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, []byte(contents), 0644)
}

// ReadFile reads a file from the workspace.
func (helper *TestHelper) ReadFile(path string) (string, error) {
	contents, err := ioutil.ReadFile(filepath.Join(helper.Workspace, path))
	return string(contents), err
}
