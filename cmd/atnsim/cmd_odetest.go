package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/nvandessel/atnsim/internal/integrator"
	"github.com/nvandessel/atnsim/internal/report"
)

func newODETestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "odetest",
		Short: "Integrate a reference equation set against its analytic solution",
		Long: `Integrate one of the reference equation sets and print the analytic
and integrated solutions side by side as CSV.

  test1  y' = (-y sin x + 2 tan x) y, solution sec x
  test2  y' = -200 x y^2, solution 1/(1+100x^2)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			setName, _ := cmd.Flags().GetString("equation-set")
			steps, _ := cmd.Flags().GetInt("steps")
			precision, _ := cmd.Flags().GetInt("precision")

			set, err := integrator.ParseEquationSet(setName)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			ds, runErr := a.engine.GenODETestDataset(ctx, set, steps)
			runErr = errors.Join(runErr, a.Close(ctx))
			if ds == nil {
				return runErr
			}

			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"equation_set":  set.String(),
					"x":             ds.X,
					"exact":         ds.Exact,
					"computed":      ds.Computed[:ds.Valid],
					"max_abs_error": ds.MaxAbsError(),
				})
			} else if err := report.WriteCSV(cmd.OutOrStdout(), ds.Table(), precision); err != nil {
				return errors.Join(runErr, err)
			}
			return runErr
		},
	}

	cmd.Flags().String("equation-set", "test2", "Reference equation set: test1 or test2")
	cmd.Flags().Int("steps", 20, "Number of timesteps")
	cmd.Flags().Int("precision", 6, "Decimals of CSV cells")
	return cmd
}
