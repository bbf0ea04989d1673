package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/atnsim/internal/jobs"
	"github.com/nvandessel/atnsim/internal/simulation"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Replicate the built-in two-species demo web",
		Long: `Run the built-in demo food web (a grass producer eaten by one
consumer) through the engine against an in-memory store and write its
report. No job store is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			timesteps, _ := cmd.Flags().GetInt("timesteps")
			if timesteps < 2 {
				return fmt.Errorf("--timesteps must be at least 2, got %d", timesteps)
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
			store := jobs.NewMemoryStore()

			sc := simulation.Demo()
			sc.Timesteps = timesteps
			result, runErr := simulation.NewRunner(a.engine, store).Run(ctx, []simulation.Scenario{sc}, a.writeResult)
			runErr = errors.Join(runErr, store.Close(), a.Close(ctx))

			res := result.Results[sc.Name]
			if res == nil {
				if runErr == nil {
					runErr = fmt.Errorf("demo produced no result (failed jobs: %v)", result.Summary.Failed)
				}
				return runErr
			}

			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"job_id":        res.JobID,
					"run_id":        res.RunID.String(),
					"species":       res.Nodes,
					"last_timestep": res.LastTimestep,
					"partial":       res.Partial(),
					"report":        reportName(res),
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Demo replicated %d timesteps of species %v\n", res.LastTimestep+1, res.Nodes)
				fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", reportName(res))
			}
			return runErr
		},
	}

	cmd.Flags().Int("timesteps", simulation.DemoTimesteps, "Number of timesteps to replicate")
	addOutputFlags(cmd)
	return cmd
}
