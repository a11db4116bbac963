package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeRoot runs the shared root command with args and returns everything it
// printed. Flag variables are reset afterwards since cobra keeps them bound.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		configPath, logLevel, logFormat = "", "", ""
		reconcileCompact, treeCompact = false, false
		treeConcurrency = 0
		healthcheckURL, healthcheckStrict = "", false
		mcpTransport, mcpHost, mcpPort = "", "", 0
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommandHelp(t *testing.T) {
	out, err := executeRoot(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "sitelens")
	assert.Contains(t, out, "Available Commands")
	for _, name := range []string{"serve", "reconcile", "tree", "version", "healthcheck", "mcp"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCommandPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level", "log-format"} {
		t.Run(name, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(name)
			require.NotNil(t, flag)
			assert.Empty(t, flag.DefValue)
		})
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "reconcile": false, "tree": false, "version": false, "healthcheck": false, "mcp": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "missing subcommand %s", name)
	}
}

func TestServeCommandFlags(t *testing.T) {
	host := serveCmd.Flags().Lookup("host")
	require.NotNil(t, host)
	port := serveCmd.Flags().Lookup("port")
	require.NotNil(t, port)
}

func TestInvalidFlag(t *testing.T) {
	out, err := executeRoot(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, out, "unknown flag")
}

func TestReconcileRequiresOneArgument(t *testing.T) {
	_, err := executeRoot(t, "reconcile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestMCPCommandRejectsUnknownTransport(t *testing.T) {
	_, err := executeRoot(t, "mcp", "--transport", "carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --transport")
}
