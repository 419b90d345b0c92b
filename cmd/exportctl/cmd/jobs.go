package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tileexport/internal/jobs"
	"tileexport/internal/view"
	"tileexport/pkg/api"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List export and ingestion jobs",
	Long:  `Fetch the job list once and print it as a table, JSON or YAML. Use --status to show only jobs in the given states (Pending, In-Progress, Completed, Failed).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		status, _ := cmd.Flags().GetString("status")
		noColor, _ := cmd.Flags().GetBool("no-color")

		path := cfg.JobsPath
		if status != "" {
			path += "?" + url.Values{"status": {status}}.Encode()
		}

		list, err := newAPIClient(cfg).ListJobs(cmd.Context(), cfg.JobsBaseURL, path)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		return writeJobs(cmd.OutOrStdout(), list, output, !noColor)
	},
}

func writeJobs(w io.Writer, list []api.JobResponse, output string, color bool) error {
	switch strings.ToLower(output) {
	case "", "table":
		return view.RenderTable(w, jobs.FromResponses(list), view.RenderOptions{Color: color && isTerminal(w)})
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []api.JobResponse{}
		}
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(list)
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func init() {
	jobsCmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")
	jobsCmd.Flags().String("status", "", "Comma separated statuses to show")
	jobsCmd.Flags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(jobsCmd)
}
