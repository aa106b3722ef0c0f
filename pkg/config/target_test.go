package config

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		env      map[string]string
		user     User
		project  Project
		exp      Target
		expError error
	}{
		{
			name: "Defaults",
			user: User{Host: "blog.example.com"},
			exp: Target{
				Host:       "blog.example.com",
				RemotePath: DefaultRemotePath,
				Service:    DefaultService,
			},
		},
		{
			name:    "Argument beats environment and config",
			args:    []string{"deploy@10.0.0.5:2222"},
			env:     map[string]string{HostEnvKey: "env-host"},
			user:    User{Host: "config-host", RemotePath: "/srv/blog"},
			project: Project{Service: "starlette-blog"},
			exp: Target{
				Host:       "deploy@10.0.0.5:2222",
				RemotePath: "/srv/blog",
				Service:    "starlette-blog",
			},
		},
		{
			name: "Environment beats config",
			env: map[string]string{
				HostEnvKey:       "env-host",
				RemotePathEnvKey: "/opt/blog",
				ServiceEnvKey:    "env-service",
			},
			user: User{Host: "config-host", RemotePath: "/srv/blog", Service: "blog2"},
			exp: Target{
				Host:       "env-host",
				RemotePath: "/opt/blog",
				Service:    "env-service",
			},
		},
		{
			name:     "Too many hosts",
			args:     []string{"a", "b"},
			expError: ErrTooManyHosts,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			getenv = func(key string) string { return test.env[key] }
			defer func() { getenv = os.Getenv }()

			target, err := ResolveTarget(test.args, test.user, test.project)
			assert.Equal(t, test.expError, err)
			assert.Equal(t, test.exp, target)
		})
	}
}

func TestResolveTargetNoHost(t *testing.T) {
	getenv = func(string) string { return "" }
	defer func() { getenv = os.Getenv }()

	_, err := ResolveTarget(nil, User{}, Project{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "blogctl config --host")
}

func TestLoad(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(_ string) (string, error) {
		return "/home/operator/.blogctl.yaml", nil
	}
	getenv = func(string) string { return "" }
	getWorkingDirectory = func() (string, error) { return "/src/blog", nil }
	loadEnvFile = func() error { return &os.PathError{Op: "open", Path: EnvFile, Err: os.ErrNotExist} }
	defer func() {
		getenv = os.Getenv
		getWorkingDirectory = os.Getwd
	}()

	// Without a user config, the host must come from the arguments.
	target, project, err := Load([]string{"blog.example.com"})
	assert.NoError(t, err)
	assert.Equal(t, Target{
		Host:       "blog.example.com",
		RemotePath: DefaultRemotePath,
		Service:    DefaultService,
		Workspace:  "/src/blog",
	}, target)
	assert.Equal(t, DefaultInstall, project.Install)

	assert.NoError(t, afero.WriteFile(fs, "/home/operator/.blogctl.yaml", []byte(
		"host: saved-host\nworkspace: /home/operator/blog\n"), 0644))
	assert.NoError(t, afero.WriteFile(fs, "/home/operator/blog/blogctl.yaml", []byte(
		"service: myblog\n"), 0644))

	target, project, err = Load(nil)
	assert.NoError(t, err)
	assert.Equal(t, Target{
		Host:       "saved-host",
		RemotePath: DefaultRemotePath,
		Service:    "myblog",
		Workspace:  "/home/operator/blog",
	}, target)
	assert.Equal(t, "/home/operator/blog/blogctl.yaml", project.GetPath())
}
