package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tileexport/internal/config"
	"tileexport/internal/exporter"
	"tileexport/internal/history"
	"tileexport/internal/registry"
	"tileexport/internal/reqstate"
)

// errSubmitFailed is returned after the registered errors were printed.
var errSubmitFailed = errors.New("submission failed")

// submit runs the submission flow for endpoint and records the outcome in
// the local history.
func submit(cmd *cobra.Command, cfg *config.Client, endpoint exporter.Endpoint, req exporter.Request) error {
	log := cmdLogger(cmd)
	out := cmd.OutOrStdout()

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Warn("submission history unavailable", "path", cfg.HistoryPath, "error", err)
	} else {
		defer hist.Close()
	}

	errs := registry.New()
	sub := exporter.New(newAPIClient(cfg), endpoint, reqstate.New(errs), log)
	if hist != nil {
		detach := hist.Attach(sub, log)
		defer detach()
	}

	var result exporter.Result
	unsubscribe := sub.Subscribe(func(r exporter.Result) { result = r })
	defer unsubscribe()

	if sub.Submit(cmd.Context(), req) != reqstate.Done {
		for _, e := range errs.Errors() {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", describeKind(e.Kind))
			if e.Request != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "  request: %v\n", e.Request)
			}
		}
		if result.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  cause: %v\n", result.Err)
		}
		return errSubmitFailed
	}

	fmt.Fprintf(out, "%s submitted for %s\n", endpoint.Name, req.ModelPath)
	fmt.Fprintf(out, "Job ID: %s\n", result.JobID)
	return nil
}

func describeKind(k registry.Kind) string {
	switch k {
	case registry.KindDuplicatePath:
		return "model path was already submitted"
	case registry.KindBBoxTooSmall:
		return "bounding box area is too small"
	case registry.KindBBoxTooLarge:
		return "bounding box area is too large"
	case registry.KindSavingExport:
		return "the export could not be saved"
	case registry.KindSavingLoad:
		return "the ingestion could not be saved"
	}
	return "an unexpected error occurred"
}
