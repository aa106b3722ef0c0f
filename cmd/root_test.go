package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubcommands(t *testing.T) {
	rootCmd := newRootCommand()
	for _, name := range []string{"bug-tool", "config", "deploy", "diff", "logs", "pull", "ssh", "sync", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		assert.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	syncCmd, _, err := rootCmd.Find([]string{"sync"})
	assert.NoError(t, err)
	for _, flag := range []string{"watch", "no-backup", "delete", "dry-run"} {
		assert.NotNil(t, syncCmd.Flags().Lookup(flag), flag)
	}
}
