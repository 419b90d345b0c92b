package cmd

import (
	"github.com/spf13/cobra"

	"tileexport/internal/exporter"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Submit a 3D model ingestion",
	Long:  `Ask the model service to ingest an exported tileset. Only the model location and identifier are sent; they may come from a metadata file (--metadata) or flags.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}

		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return err
		}

		return submit(cmd, cfg, exporter.LoadEndpoint(cfg.ModelsBaseURL, cfg.IngestionsPath), req)
	},
}

func init() {
	addLocationFlags(loadCmd)

	rootCmd.AddCommand(loadCmd)
}
