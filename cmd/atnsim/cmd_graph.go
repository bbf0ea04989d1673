package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nvandessel/atnsim/internal/engine"
	"github.com/nvandessel/atnsim/internal/foodweb"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the ecosystem graph of a job",
		Long: `Print the relationship graph of a stored job.

Formats:
  csv   three-section relationship table (the stored form)
  dot   Graphviz digraph, indirect relationships dashed
  json  list of predator/prey edges

Examples:
  atnsim graph --job 3
  atnsim graph --job 3 --format dot | dot -Tpng -o web.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, _ := cmd.Flags().GetInt("job")
			format, _ := cmd.Flags().GetString("format")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.Close(ctx)

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.LoadJob(ctx, jobID)
			if err != nil {
				return err
			}
			out, err := renderJobGraph(format, func() (string, error) {
				return engine.RelationshipTable(job)
			}, func() (*foodweb.Graph, error) {
				nodes, err := job.NodeIDs()
				if err != nil {
					return nil, err
				}
				sort.Ints(nodes)
				return engine.JobGraph(job, nodes)
			})
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut && format != string(foodweb.FormatJSON) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"job_id": job.ID,
					"format": format,
					"graph":  out,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().Int("job", 0, "Job id")
	cmd.Flags().String("format", string(foodweb.FormatCSV), "Output format: csv, dot or json")
	cmd.MarkFlagRequired("job")
	addStoreFlags(cmd)
	return cmd
}

// renderJobGraph renders a job's graph in format. table and graph are
// called lazily so only the needed form is built.
func renderJobGraph(format string, table func() (string, error), graph func() (*foodweb.Graph, error)) (string, error) {
	switch foodweb.Format(format) {
	case foodweb.FormatCSV:
		return table()
	case foodweb.FormatDOT:
		g, err := graph()
		if err != nil {
			return "", err
		}
		return foodweb.RenderDOT(g, nil, true), nil
	case foodweb.FormatJSON:
		g, err := graph()
		if err != nil {
			return "", err
		}
		data, err := foodweb.RenderJSON(g, nil)
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	default:
		return "", errors.New("unsupported format " + format + " (valid: csv, dot, json)")
	}
}
