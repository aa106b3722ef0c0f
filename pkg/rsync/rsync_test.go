package rsync

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name     string
		runner   Runner
		transfer Transfer
		exp      []string
	}{
		{
			name:   "Push code",
			runner: Runner{supportsInfo: true},
			transfer: Transfer{
				Source:   "/src/blog/",
				Dest:     "deploy@blog.example.com:~/blog/",
				Shell:    "ssh",
				Excludes: []string{"/data/", ".git/"},
				Delete:   true,
			},
			exp: []string{"-az", "--info=stats1", "-e", "ssh", "--delete",
				"--exclude=/data/", "--exclude=.git/",
				"/src/blog/", "deploy@blog.example.com:~/blog/"},
		},
		{
			name:   "Old rsync dry run",
			runner: Runner{},
			transfer: Transfer{
				Source: "blog:~/blog/data/posts.json",
				Dest:   "/src/blog/data/posts.json",
				Shell:  "ssh -p 2222",
				DryRun: true,
			},
			exp: []string{"-az", "-e", "ssh -p 2222", "--dry-run", "--itemize-changes",
				"blog:~/blog/data/posts.json", "/src/blog/data/posts.json"},
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.exp, test.runner.Args(test.transfer), test.name)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion([]byte("rsync  version 3.2.7  protocol version 31\n" +
		"Copyright (C) 1996-2022 by Andrew Tridgell, Wayne Davison, and others.\n"))
	assert.NoError(t, err)
	assert.Equal(t, "3.2.7", v.String())

	v, err = parseVersion([]byte("openrsync: protocol version 29\nrsync version 2.6.9 compatible\n"))
	assert.NoError(t, err)
	assert.True(t, v.LessThan(statsVersion))

	_, err = parseVersion([]byte("command not found"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	defer mockExec(t, "rsync  version 3.1.3  protocol version 31\n", "", 0)()

	runner, err := New(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Runner{path: "/usr/bin/rsync", supportsInfo: true}, runner)
}

func TestNewMissingRsync(t *testing.T) {
	defer func() { lookPath = exec.LookPath }()
	lookPath = func(string) (string, error) {
		return "", exec.ErrNotFound
	}

	_, err := New(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rsync isn't installed")
}

func TestRun(t *testing.T) {
	runner := Runner{path: "/usr/bin/rsync"}

	restore := mockExec(t, "sent 1,024 bytes", "", 0)
	out, err := runner.Run(context.Background(), Transfer{Source: "a", Dest: "b"})
	restore()
	assert.NoError(t, err)
	assert.Equal(t, "sent 1,024 bytes", string(out))

	restore = mockExec(t, "", "rsync: connection unexpectedly closed\n", 12)
	_, err = runner.Run(context.Background(), Transfer{Source: "a", Dest: "b"})
	restore()
	assert.EqualError(t, err, "rsync exit status 12: rsync: connection unexpectedly closed")
}

// mockExec replaces command execution with a re-invocation of the test binary
// that prints the given output and exits with the given status.
func mockExec(t *testing.T, stdout, stderr string, status int) func() {
	lookPath = func(string) (string, error) {
		return "/usr/bin/rsync", nil
	}
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		assert.Equal(t, "/usr/bin/rsync", name)
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"HELPER_STDOUT=" + stdout,
			"HELPER_STDERR=" + stderr,
			fmt.Sprintf("HELPER_STATUS=%d", status),
		}
		return cmd
	}

	return func() {
		execCommand = exec.CommandContext
		lookPath = exec.LookPath
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	fmt.Fprint(os.Stdout, os.Getenv("HELPER_STDOUT"))
	fmt.Fprint(os.Stderr, os.Getenv("HELPER_STDERR"))

	status := 0
	fmt.Sscanf(strings.TrimSpace(os.Getenv("HELPER_STATUS")), "%d", &status)
	os.Exit(status)
}
