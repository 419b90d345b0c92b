package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tileexport/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past submissions",
	Long:  `List exports and ingestions submitted from this machine, newest first, with their outcome and job ID.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		hist, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer hist.Close()

		entries, err := hist.List(cmd.Context(), limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch strings.ToLower(output) {
		case "json":
			if entries == nil {
				entries = []history.Entry{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		case "", "table":
		default:
			return fmt.Errorf("unknown output format %q (want table or json)", output)
		}

		if len(entries) == 0 {
			fmt.Fprintln(out, "No submissions yet.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tENDPOINT\tMODEL PATH\tIDENTIFIER\tSTATE\tJOB ID\tERROR")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				humanize.Time(e.SubmittedAt),
				e.Endpoint,
				e.ModelPath,
				dashIfEmpty(e.Identifier),
				e.State,
				dashIfEmpty(e.JobID),
				dashIfEmpty(e.ErrorKind),
			)
		}
		return tw.Flush()
	},
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 25, "Number of submissions to show")
	historyCmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	rootCmd.AddCommand(historyCmd)
}
