package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "stratum", cmd.Use)
	assert.Contains(t, cmd.Long, "three tiers")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "changeset", "session", "entity", "edge"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	workspaceFlag := cmd.PersistentFlags().Lookup("workspace")
	require.NotNil(t, workspaceFlag)
	assert.Equal(t, "w", workspaceFlag.Shorthand)
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "init"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEntityCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	createCmd, _, err := cmd.Find([]string{"entity", "create"})
	require.NoError(t, err)

	for _, name := range []string{"kind", "name", "payload", "changeset", "session"} {
		flag := createCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "entity create should have --%s", name)
	}
}

func TestEdgeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	createCmd, _, err := cmd.Find([]string{"edge", "create"})
	require.NoError(t, err)

	for _, name := range []string{"kind", "tail", "head", "session"} {
		flag := createCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "edge create should have --%s", name)
	}
}

func TestChangeSetAlias(t *testing.T) {
	cmd := NewRootCommand()
	csCmd, _, err := cmd.Find([]string{"cs"})
	require.NoError(t, err)
	assert.Equal(t, "changeset", csCmd.Name())
}

func TestEndToEnd_ChangeSetLifecycle(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	run := func(args ...string) (string, error) {
		cmd := NewRootCommand()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"--db", db, "--workspace", "acme", "--format", "json"}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	_, err := run("init")
	require.NoError(t, err)

	out, err := run("changeset", "create", "--name", "feature")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	csID, _ := data["ID"].(string)
	require.NotEmpty(t, csID)

	out, err = run("changeset", "apply", csID)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	// Applying twice fails with a non-zero exit and an INVALID_STATE
	// error body.
	out, err = run("changeset", "apply", csID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_STATE", resp.Error.Code)
}

func TestLoadConfigInto(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stratum.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: /tmp/x.db\nworkspace: acme\nnotify_url: mem://changes\n"), 0o644))

	opts := &RootOptions{ConfigPath: path}
	require.NoError(t, loadConfigInto(opts))
	assert.Equal(t, "/tmp/x.db", opts.Database)
	assert.Equal(t, "acme", opts.Workspace)

	// The parsed file travels with the options, not in package state.
	require.NotNil(t, opts.config)
	assert.Equal(t, "mem://changes", opts.config.NotifyURL)
	fresh := &RootOptions{}
	assert.Nil(t, fresh.config)

	// Flags win over file values.
	opts = &RootOptions{ConfigPath: path, Database: "/tmp/other.db"}
	require.NoError(t, loadConfigInto(opts))
	assert.Equal(t, "/tmp/other.db", opts.Database)
}
