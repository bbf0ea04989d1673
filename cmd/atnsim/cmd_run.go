package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/atnsim/internal/engine"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replicate simulation jobs",
		Long: `Replicate stored simulation jobs and write one report per job.

Exactly one selection is required: explicit ids, every included job, or
every unprocessed job. Unprocessed jobs are marked processed once they
yield a report, partial reports of diverged jobs included.

Examples:
  atnsim run --job 3 --job 7
  atnsim run --included --format arrow --out reports/
  atnsim run --unprocessed --store postgres --dsn "$PG_DSN"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sel, err := selectionFromFlags(cmd)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
				if cfg.Output.Dir, err = promptOutputDir(cfg.Output.Dir); err != nil {
					return err
				}
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				a.Close(ctx)
				return err
			}

			summary, runErr := a.engine.ProcessJobs(ctx, store, sel, a.writeResult)
			runErr = errors.Join(runErr, store.Close(), a.Close(ctx))

			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"mode":      sel.Mode.String(),
					"succeeded": nonNil(summary.Succeeded),
					"diverged":  nonNil(summary.Diverged),
					"failed":    nonNil(summary.Failed),
					"missing":   nonNil(summary.Missing),
				})
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Processed %d job(s) (%s)\n", summary.Total(), sel.Mode)
				fmt.Fprintf(out, "  succeeded: %v\n", summary.Succeeded)
				if len(summary.Diverged) > 0 {
					fmt.Fprintf(out, "  diverged:  %v (partial reports written)\n", summary.Diverged)
				}
				if len(summary.Failed) > 0 {
					fmt.Fprintf(out, "  failed:    %v\n", summary.Failed)
				}
				if len(summary.Missing) > 0 {
					fmt.Fprintf(out, "  missing:   %v\n", summary.Missing)
				}
			}
			return runErr
		},
	}

	cmd.Flags().IntSlice("job", nil, "Job id to replicate (repeatable)")
	cmd.Flags().Bool("included", false, "Replicate every job flagged for inclusion")
	cmd.Flags().Bool("unprocessed", false, "Replicate every job not yet processed")
	addOutputFlags(cmd)
	addStoreFlags(cmd)
	return cmd
}

// selectionFromFlags maps --job, --included and --unprocessed to a batch
// selection. Exactly one must be given.
func selectionFromFlags(cmd *cobra.Command) (engine.Selection, error) {
	ids, _ := cmd.Flags().GetIntSlice("job")
	included, _ := cmd.Flags().GetBool("included")
	unprocessed, _ := cmd.Flags().GetBool("unprocessed")

	given := 0
	sel := engine.Selection{}
	if len(ids) > 0 {
		given++
		sel = engine.Selection{Mode: engine.ModeExplicit, IDs: ids}
	}
	if included {
		given++
		sel = engine.Selection{Mode: engine.ModeIncluded}
	}
	if unprocessed {
		given++
		sel = engine.Selection{Mode: engine.ModeUnprocessed}
	}
	switch given {
	case 0:
		return sel, errors.New("select jobs with --job, --included or --unprocessed")
	case 1:
		return sel, nil
	default:
		return sel, errors.New("--job, --included and --unprocessed are mutually exclusive")
	}
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
