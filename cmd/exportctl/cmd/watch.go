package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"tileexport/internal/jobs"
	"tileexport/internal/poller"
	"tileexport/internal/reconcile"
	"tileexport/internal/registry"
	"tileexport/internal/reqstate"
	"tileexport/internal/view"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the job list until interrupted",
	Long: `Poll the job list on an interval and redraw the table whenever a tracked field of a job changes.

Rows keep their identity between polls; a job is only redrawn when one of the
tracked fields (--fields, default status,updateTime,percentage) differs from
the last poll. With --until-done the command exits once every job completed
or failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = cfg.PollInterval
		}
		fieldsFlag, _ := cmd.Flags().GetString("fields")
		fieldNames := cfg.TrackedFields
		if fieldsFlag != "" {
			fieldNames = strings.Split(fieldsFlag, ",")
		}
		tracked, err := reconcile.ParseFields(fieldNames)
		if err != nil {
			return err
		}
		untilDone, _ := cmd.Flags().GetBool("until-done")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		noColor, _ := cmd.Flags().GetBool("no-color")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		log := cmdLogger(cmd)
		cl := newAPIClient(cfg)
		list := func(ctx context.Context) ([]jobs.Record, error) {
			resp, err := cl.ListJobs(ctx, cfg.JobsBaseURL, cfg.JobsPath)
			if err != nil {
				return nil, err
			}
			return jobs.FromResponses(resp), nil
		}

		errs := registry.New()
		table := view.NewTable()
		driver := poller.New(list, table, reqstate.New(errs), poller.Config{
			Interval: interval,
			Tracked:  tracked,
			Logger:   log,
		})

		out := cmd.OutOrStdout()
		w := &watchWriter{
			out:   out,
			color: !noColor && isTerminal(out),
			table: table,
			errs:  errs,
		}

		finished := make(chan struct{})
		var once sync.Once
		unsubscribe := driver.Subscribe(func(ev poller.Event) {
			if ev.Discarded {
				return
			}
			if ev.Err == nil {
				errs.Clean(registry.KindGeneral)
			}
			if ev.Initial || !ev.Delta.Empty() || ev.Err != nil {
				w.render()
			}
			if untilDone && ev.Err == nil && allTerminal(table.Snapshot()) {
				once.Do(func() { close(finished) })
			}
		})
		defer unsubscribe()

		if err := driver.Open(ctx); err != nil {
			return err
		}
		defer driver.Close()

		select {
		case <-finished:
			return nil
		case <-ctx.Done():
			if timeout > 0 && ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("jobs still running after %v", timeout)
			}
			return nil
		}
	},
}

// watchWriter redraws the table and the current errors.
type watchWriter struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	table *view.Table
	errs  *registry.Registry
}

func (w *watchWriter) render() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.color {
		// Clear screen and move the cursor home
		fmt.Fprint(w.out, "\033[H\033[2J")
	}
	view.RenderTable(w.out, w.table.Snapshot(), view.RenderOptions{Color: w.color})
	for _, e := range w.errs.Errors() {
		if e.Request != nil {
			fmt.Fprintf(w.out, "error: %s (%v)\n", e.Kind, e.Request)
		} else {
			fmt.Fprintf(w.out, "error: %s\n", e.Kind)
		}
	}
	if !w.color {
		fmt.Fprintln(w.out)
	}
}

func allTerminal(rows []jobs.Record) bool {
	for _, r := range rows {
		if !r.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "Polling interval (default from poll_interval)")
	watchCmd.Flags().String("fields", "", "Comma separated fields that mark a job as changed")
	watchCmd.Flags().Bool("until-done", false, "Exit once every job completed or failed")
	watchCmd.Flags().Duration("timeout", 0, "Give up after this long (0 waits forever)")
	watchCmd.Flags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(watchCmd)
}
