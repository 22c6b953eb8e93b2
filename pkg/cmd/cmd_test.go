package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newTestCommand() *cobra.Command {
	logger := log.New(log.ConsoleWriter{Out: os.Stderr})

	return NewCommand(NewOptions(
		WithContext(context.Background()),
		WithLogger(logger),
	))
}

func TestNewCommand(t *testing.T) {
	cmd := newTestCommand()
	require.NotNil(t, cmd)
	require.Equal(t, "xprof", cmd.Name())
	require.Contains(t, cmd.Short, "sampling CPU profiler")
	require.True(t, cmd.HasSubCommands())
	require.True(t, cmd.DisableAutoGenTag)
}

func TestCommandFlags(t *testing.T) {
	cmd := newTestCommand()

	flag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	require.Equal(t, "string", flag.Value.Type())
	require.Equal(t, "info", flag.DefValue)
	require.Contains(t, flag.Usage, "Log level")
}

func TestCommandSubcommands(t *testing.T) {
	cmd := newTestCommand()

	subcommands := make(map[string]*cobra.Command)
	for _, subCmd := range cmd.Commands() {
		subcommands[subCmd.Name()] = subCmd
	}

	require.Contains(t, subcommands, "profile")
	require.Contains(t, subcommands, "attach")
	require.Contains(t, subcommands, "wait")
}

func TestCommandHelp(t *testing.T) {
	cmd := newTestCommand()

	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	helpOutput := output.String()
	require.Contains(t, helpOutput, "xprof")
	require.Contains(t, helpOutput, "Available Commands:")
	require.Contains(t, helpOutput, "profile")
	require.Contains(t, helpOutput, "attach")
	require.Contains(t, helpOutput, "wait")
}

func TestCommandInvalidFlag(t *testing.T) {
	cmd := newTestCommand()

	var output bytes.Buffer
	cmd.SetErr(&output)
	cmd.SetArgs([]string{"--invalid-flag"})

	require.Error(t, cmd.Execute())
	require.Contains(t, output.String(), "unknown flag")
}
