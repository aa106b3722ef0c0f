package deploy

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/host"
	remoteMocks "github.com/sidkik/blogctl/pkg/remote/mocks"
	"github.com/sidkik/blogctl/pkg/release"
	"github.com/sidkik/blogctl/pkg/rsync"
	rsyncMocks "github.com/sidkik/blogctl/pkg/rsync/mocks"
)

var testProject = config.Project{
	Install: []string{"make install"},
	Data:    config.DefaultDataRules,
}

func mockConfig(workspace string, state release.GitState) {
	loadConfig = func(args []string) (config.Target, config.Project, error) {
		host := "deploy@blog.example.com"
		if len(args) == 1 {
			host = args[0]
		}
		return config.Target{
			Host:       host,
			RemotePath: "~/blog",
			Service:    "blog",
			Workspace:  workspace,
		}, testProject, nil
	}
	readGitState = func(dir string) (release.GitState, error) {
		return state, nil
	}
}

func TestDryRun(t *testing.T) {
	mockConfig("/src/blog", release.GitState{Commit: "abc123"})
	connect = func(context.Context, config.Target, config.Project) (host.Host, error) {
		t.Fatal("dry runs shouldn't connect")
		return host.Host{}, nil
	}

	tests := []struct {
		name   string
		opts   options
		expOut string
	}{
		{
			name: "Default",
			opts: options{dryRun: true},
			expOut: "1. check local app.py\n" +
				"2. create remote directories\n" +
				"3. copy code\n" +
				"4. install dependencies\n" +
				"5. restart service\n" +
				"6. check service\n" +
				"7. record release\n",
		},
		{
			name: "WithDataSkipInstall",
			opts: options{dryRun: true, withData: true, skipInstall: true},
			expOut: "1. check local app.py\n" +
				"2. create remote directories\n" +
				"3. copy code\n" +
				"4. check local data/posts.json\n" +
				"5. back up remote posts\n" +
				"6. copy data/posts.json\n" +
				"7. copy uploads\n" +
				"8. install dependencies (skipped)\n" +
				"9. restart service\n" +
				"10. check service\n" +
				"11. record release\n",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			stdout = &out
			assert.NoError(t, run(context.Background(), nil, test.opts))
			assert.Equal(t, test.expOut, out.String())
		})
	}
}

func TestRequireClean(t *testing.T) {
	mockConfig("/src/blog", release.GitState{Commit: "abc123", Dirty: true})

	err := run(context.Background(), nil, options{requireClean: true})
	msg, ok := errors.GetFriendlyMessage(err)
	assert.True(t, ok)
	assert.Contains(t, msg, "/src/blog has uncommitted changes")
}

func TestRun(t *testing.T) {
	workspace, err := ioutil.TempDir("", "blogctl-deploy")
	assert.NoError(t, err)
	defer os.RemoveAll(workspace)
	assert.NoError(t, ioutil.WriteFile(filepath.Join(workspace, appFile), []byte("app"), 0644))

	mockConfig(workspace, release.GitState{Commit: "abc123"})

	remoteClient := &remoteMocks.Client{}
	remoteClient.On("Run", mock.Anything, mock.Anything).Return(nil, nil)
	remoteClient.On("Close").Return(nil)
	rsyncClient := &rsyncMocks.Client{}
	rsyncClient.On("Run", mock.Anything, rsync.Transfer{
		Source:   workspace + "/",
		Dest:     "web:~/blog/",
		Shell:    "ssh",
		Excludes: testProject.CodeExcludes(),
		Delete:   true,
	}).Return(nil, nil)

	connect = func(_ context.Context, target config.Target, project config.Project) (host.Host, error) {
		return host.New(target, project, remoteClient, rsyncClient)
	}

	assert.NoError(t, run(context.Background(), []string{"web"}, options{}))
	rsyncClient.AssertExpectations(t)
	remoteClient.AssertCalled(t, "Close")

	var commands []string
	for _, call := range remoteClient.Calls {
		if call.Method == "Run" {
			commands = append(commands, call.Arguments.String(1))
		}
	}
	assert.Len(t, commands, 5)
	assert.Equal(t, []string{
		"mkdir -p ~/'blog' ~/'blog/data'",
		"cd ~/'blog' && make install",
		"sudo -n systemctl restart 'blog'",
		"systemctl is-active --quiet 'blog'",
	}, commands[:4])
	assert.True(t, strings.HasPrefix(commands[4], "mkdir -p ~/'blog/.blogctl' && printf "))
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	workspace, err := ioutil.TempDir("", "blogctl-deploy")
	assert.NoError(t, err)
	defer os.RemoveAll(workspace)

	mockConfig(workspace, release.GitState{})

	remoteClient := &remoteMocks.Client{}
	remoteClient.On("Close").Return(nil)
	rsyncClient := &rsyncMocks.Client{}
	connect = func(_ context.Context, target config.Target, project config.Project) (host.Host, error) {
		return host.New(target, project, remoteClient, rsyncClient)
	}

	err = run(context.Background(), nil, options{})
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "check local app.py: "))
	remoteClient.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	rsyncClient.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestWithDataCustomPosts(t *testing.T) {
	project := config.Project{Data: []config.SyncRule{
		{From: "content/posts.json", To: config.PostsFile},
	}}
	h, err := host.New(config.Target{
		Host:       "deploy@blog.example.com",
		RemotePath: "~/blog",
		Service:    "blog",
		Workspace:  "/src/blog",
	}, project, nil, nil)
	assert.NoError(t, err)

	var names []string
	for _, step := range deploySteps(h, release.GitState{}, options{withData: true}) {
		names = append(names, step.Name)
	}
	assert.Contains(t, names, "check local content/posts.json")
	assert.Contains(t, names, "copy content/posts.json")
	assert.NotContains(t, names, "check local data/posts.json")
}
