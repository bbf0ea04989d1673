package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nvandessel/atnsim/internal/jobs"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage stored simulation jobs",
	}
	cmd.AddCommand(
		newJobsImportCmd(),
		newJobsListCmd(),
	)
	return cmd
}

func newJobsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import jobs from a YAML file",
		Long: `Validate and save every job of a YAML file. Existing jobs with the
same id are replaced.

The file lists jobs under a top-level "jobs" key:

  jobs:
    - id: 1
      node_config: "2,[5],2000,1.000,0,0,[70],2494,13.000,1,X=0.155,0"
      timesteps: 401
      include: true
      links:
        70: [5]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := jobs.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
			}
			defer store.Close()

			n, err := jobs.Import(ctx, store, args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"imported": n,
					"file":     args[0],
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d job(s) from %s\n", n, args[0])
			return nil
		},
	}
	addStoreFlags(cmd)
	return cmd
}

func newJobsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			unprocessed, _ := cmd.Flags().GetBool("unprocessed")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := jobs.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
			}
			defer store.Close()

			all, err := store.ListJobs(ctx)
			if err != nil {
				return err
			}
			list := make([]*jobs.Job, 0, len(all))
			for _, j := range all {
				if unprocessed && j.Processed {
					continue
				}
				list = append(list, j)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"jobs":  list,
					"count": len(list),
				})
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSPECIES\tTIMESTEPS\tINCLUDE\tPROCESSED\tDESCRIPTION")
			for _, j := range list {
				species := "?"
				if ids, err := j.NodeIDs(); err == nil {
					species = fmt.Sprint(len(ids))
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%v\t%v\t%s\n", j.ID, species, j.Timesteps, j.Include, j.Processed, j.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("unprocessed", false, "Only list jobs not yet processed")
	addStoreFlags(cmd)
	return cmd
}
