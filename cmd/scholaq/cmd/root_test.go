package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	expected := []string{"import", "query", "papers", "serve", "version"}
	for _, name := range expected {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "subcommand %s registered", name)
	}
}

func TestRootCmd_VersionFlag(t *testing.T) {
	root := NewRootCmd()
	root.PersistentPreRunE = nil
	root.PersistentPostRunE = nil

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "scholaq version")
}

func TestVersionCmd(t *testing.T) {
	root := NewRootCmd()
	root.PersistentPreRunE = nil
	root.PersistentPostRunE = nil

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "scholaq dev")
}

func TestVersionCmd_JSON(t *testing.T) {
	root := NewRootCmd()
	root.PersistentPreRunE = nil
	root.PersistentPostRunE = nil

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--json"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), `"version": "dev"`)
}

func TestQueryCmd_RequiresArgs(t *testing.T) {
	root := NewRootCmd()
	root.PersistentPreRunE = nil
	root.PersistentPostRunE = nil

	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"query"})

	assert.Error(t, root.Execute())
}
