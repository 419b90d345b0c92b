package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tileexport/internal/client"
	"tileexport/internal/config"
	"tileexport/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "exportctl",
	Short: "exportctl submits 3D model exports and watches their jobs",
	Long: `exportctl is the command-line interface for the 3D tiles export service.

It sends model export and ingestion requests to the model service, keeps a
local history of what was submitted, and watches the job list until the
jobs finish.

Common workflows:

  Export a model described in a metadata file:
    exportctl export --metadata model.yaml

  Export a model with an explicit bounding box:
    exportctl export --model-path /tilesets/city --tileset tileset.json \
      --identifier city-1 --bbox 34.7,32.0,34.9,32.2

  Ingest an exported model:
    exportctl load --model-path /tilesets/city --tileset tileset.json --identifier city-1

  Watch jobs until all of them completed or failed:
    exportctl watch --until-done

Configuration:
  Settings are read from $HOME/.exportctl.yaml, a .env file and
  EXPORTCTL_* environment variables, for example:
    EXPORTCTL_JOBS_BASE_URL     Job service URL (default: http://localhost:6161)
    EXPORTCTL_MODELS_BASE_URL   Model service URL (default: http://localhost:6161)
    EXPORTCTL_TOKEN             API token`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	config.InitClient(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".exportctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".exportctl")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.exportctl.yaml)")

	rootCmd.PersistentFlags().String("jobs-url", "", "Job service URL")
	viper.BindPFlag("jobs_base_url", rootCmd.PersistentFlags().Lookup("jobs-url"))

	rootCmd.PersistentFlags().String("models-url", "", "Model service URL")
	viper.BindPFlag("models_base_url", rootCmd.PersistentFlags().Lookup("models-url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "API token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// loadClientConfig validates the merged settings.
func loadClientConfig() (*config.Client, error) {
	cfg, err := config.ClientFrom(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newAPIClient(cfg *config.Client) *client.Client {
	return client.New(client.Config{
		Token:       cfg.Token,
		Timeout:     cfg.HTTPTimeout,
		RequestRate: cfg.RequestRate,
	})
}

// cmdLogger writes JSON logs to the command's stderr so they never mix
// with table or JSON output.
func cmdLogger(cmd *cobra.Command) *slog.Logger {
	level, err := logger.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = slog.LevelWarn
	}
	return logger.NewWithLevel(cmd.ErrOrStderr(), level)
}
