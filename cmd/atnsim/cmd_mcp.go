package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nvandessel/atnsim/internal/config"
	"github.com/nvandessel/atnsim/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the engine as MCP tools over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
tools replicate_job, run_reference_test, describe_foodweb and list_jobs,
plus the atnsim://jobs/{id} resource.

Logs go to stderr. Tool calls are audited to ~/.atnsim/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				a.Close(ctx)
				return err
			}

			srv, err := mcp.NewServer(&mcp.Config{
				Name:      "atnsim",
				Version:   version,
				Engine:    a.engine,
				Store:     store,
				Precision: cfg.Output.Precision,
				AuditDir:  config.Dir(),
				Logger:    a.logger,
			})
			if err != nil {
				store.Close()
				a.Close(ctx)
				return err
			}

			a.logger.Info("mcp server starting", "version", version, "store", cfg.Store.Driver)
			return errors.Join(srv.Run(ctx), a.Close(ctx))
		},
	}
	addStoreFlags(cmd)
	return cmd
}
