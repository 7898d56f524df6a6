package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and fresh flag values.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configDir = ""
	engineOutputFormat = "table"
	engineEndpoint = ""
	configOutputFormat = "yaml"
	updateCheckOnly = false
	updateShowNotes = true
	setupAcceptDefaults = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "intifacectl", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "intifacectl version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	require.NoError(t, testCmd.Execute())
	assert.Equal(t, "intifacectl version 1.0.0\n", buf.String())
}

func TestVersionCommand(t *testing.T) {
	SetVersion("9.9.9")
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "intifacectl version 9.9.9\n", out)
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, expected := range []string{"version", "serve", "engine", "config", "update", "setup"} {
		assert.True(t, found[expected], "subcommand %s should be registered", expected)
	}
}

func TestServeFlags(t *testing.T) {
	assert.NotNil(t, serveCmd.Flags().Lookup("no-tui"))
	assert.NotNil(t, serveCmd.Flags().Lookup("debug"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config-dir"))
}
