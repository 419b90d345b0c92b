package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tileexport/internal/config"
)

// resetViper clears settings between tests and points the history database
// at a temporary directory.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	config.InitClient(viper.GetViper())
	viper.Set("history_path", filepath.Join(t.TempDir(), "history.db"))
}

// resetFlags restores every flag to its default, since rootCmd is shared.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func executeCommand(args ...string) (string, error) {
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_DefaultURLs(t *testing.T) {
	resetViper(t)

	if got := viper.GetString("jobs_base_url"); got != "http://localhost:6161" {
		t.Errorf("expected default jobs url http://localhost:6161, got: %s", got)
	}
	if got := viper.GetString("models_path"); got != "/models" {
		t.Errorf("expected default models path /models, got: %s", got)
	}
}

func TestRootCommand_EnvVarBinding(t *testing.T) {
	resetViper(t)

	t.Setenv("EXPORTCTL_TOKEN", "env-token-value")
	t.Setenv("EXPORTCTL_JOBS_BASE_URL", "http://custom-url:8080")

	if got := viper.GetString("token"); got != "env-token-value" {
		t.Errorf("expected token from env var, got: %s", got)
	}
	if got := viper.GetString("jobs_base_url"); got != "http://custom-url:8080" {
		t.Errorf("expected url from env var, got: %s", got)
	}
}

func TestRootCommand_ExecuteReturnsNoError(t *testing.T) {
	resetViper(t)

	if _, err := executeCommand("--help"); err != nil {
		t.Errorf("root command should execute without error: %v", err)
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	want := map[string]bool{"jobs": false, "watch": false, "export": false, "load": false, "history": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Errorf("expected %q subcommand to be registered with root command", name)
		}
	}
}

func TestExecute_ReturnsError(t *testing.T) {
	resetViper(t)

	if _, err := executeCommand("unknown-command-xyz"); err == nil {
		t.Error("expected error for unknown command")
	}
}
