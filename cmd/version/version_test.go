package version

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/host"
	remoteMocks "github.com/sidkik/blogctl/pkg/remote/mocks"
	rsyncMocks "github.com/sidkik/blogctl/pkg/rsync/mocks"
	"github.com/sidkik/blogctl/pkg/version"
)

func mockHost(out []byte, err error) *remoteMocks.Client {
	loadConfig = func(args []string) (config.Target, config.Project, error) {
		return config.Target{Host: "web", RemotePath: "~/blog"}, config.Project{}, nil
	}

	remoteClient := &remoteMocks.Client{}
	remoteClient.On("Run", mock.Anything, "cat ~/'blog/.blogctl/release.json'").Return(out, err)
	remoteClient.On("Close").Return(nil)
	connect = func(_ context.Context, target config.Target, project config.Project) (host.Host, error) {
		return host.New(target, project, remoteClient, &rsyncMocks.Client{})
	}
	return remoteClient
}

func TestLocalOnly(t *testing.T) {
	loadConfig = func(args []string) (config.Target, config.Project, error) {
		return config.Target{}, config.Project{}, errors.NewFriendlyError("No host to connect to.")
	}
	connect = func(context.Context, config.Target, config.Project) (host.Host, error) {
		t.Fatal("shouldn't connect without a host")
		return host.Host{}, nil
	}

	var out bytes.Buffer
	stdout = &out
	assert.NoError(t, run(context.Background(), nil))
	assert.Equal(t, "local version:  "+version.Version+"\n", out.String())

	// An explicit host that can't be resolved is an error.
	assert.Error(t, run(context.Background(), []string{"a", "b"}))
}

func TestRemoteRelease(t *testing.T) {
	deployedAt := time.Date(2024, 5, 4, 3, 2, 1, 0, time.UTC)
	remoteClient := mockHost([]byte(`{"id":"r1","commit":"abc123","dirty":true,`+
		`"deployedAt":"2024-05-04T03:02:01Z","deployedBy":"kim","blogctlVersion":"1.2.0"}`), nil)

	var out bytes.Buffer
	stdout = &out
	assert.NoError(t, run(context.Background(), nil))
	assert.Equal(t, "local version:  "+version.Version+"\n"+
		"remote release: r1\n"+
		"  commit:       abc123 (dirty)\n"+
		"  deployed:     "+deployedAt.Local().Format(time.RFC1123)+" by kim\n"+
		"  blogctl:      1.2.0\n", out.String())
	remoteClient.AssertCalled(t, "Close")
}

func TestNeverDeployed(t *testing.T) {
	mockHost(nil, errors.RemoteCommandError{ExitStatus: 1, Stderr: "No such file or directory"})

	var out bytes.Buffer
	stdout = &out
	assert.NoError(t, run(context.Background(), nil))
	assert.Equal(t, "local version:  "+version.Version+"\n"+
		"remote release: none (not deployed with blogctl)\n", out.String())
}
