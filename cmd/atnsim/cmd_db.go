package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/atnsim/internal/backup"
	"github.com/nvandessel/atnsim/internal/jobs"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the job store",
	}
	cmd.AddCommand(
		newDBInitCmd(),
		newDBBackupCmd(),
		newDBRestoreCmd(),
	)
	return cmd
}

func newDBInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the job store schema",
		Long: `Open the configured job store, creating its tables or migrating them
to the current schema version. Safe to run more than once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := jobs.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("initialize %s store: %w", cfg.Store.Driver, err)
			}
			if err := store.Close(); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"driver":         cfg.Store.Driver,
					"schema_version": jobs.SchemaVersion,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s job store (schema v%d)\n", cfg.Store.Driver, jobs.SchemaVersion)
			return nil
		},
	}
	addStoreFlags(cmd)
	return cmd
}

func newDBBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot every job of the store",
		Long: `Write every stored job to a checksummed, compressed snapshot file.

Snapshots go to ~/.atnsim/backups/ unless --output is given. With --keep N
only the N newest snapshots of that directory are retained.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")
			keep, _ := cmd.Flags().GetInt("keep")

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

			dir := backup.DefaultDir()
			path := output
			if path == "" {
				path = backup.GeneratePath(dir, time.Now())
			}
			h, err := backup.Backup(ctx, store, path, map[string]string{
				"driver":  cfg.Store.Driver,
				"version": version,
			})
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var rotated []string
			if keep > 0 && output == "" {
				if rotated, err = backup.Rotate(dir, keep); err != nil {
					return err
				}
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"path":     path,
					"jobs":     h.JobCount,
					"checksum": h.Checksum,
					"rotated":  len(rotated),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d job(s) to %s\n", h.JobCount, path)
			if len(rotated) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d old snapshot(s)\n", len(rotated))
			}
			return nil
		},
	}
	cmd.Flags().String("output", "", "Snapshot path (default: timestamped file in ~/.atnsim/backups)")
	cmd.Flags().Int("keep", 0, "Keep only the N newest snapshots in the default directory")
	addStoreFlags(cmd)
	return cmd
}

func newDBRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Restore jobs from a snapshot",
		Long: `Verify a snapshot's checksum and save its jobs into the store, replacing
jobs with the same id. Snapshots outside ~/.atnsim/backups/ are refused
unless --any-path is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			anyPath, _ := cmd.Flags().GetBool("any-path")

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

			allowed := backup.DefaultDir()
			if anyPath {
				allowed = ""
			}
			n, err := backup.Restore(ctx, store, args[0], allowed)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"restored": n,
					"path":     args[0],
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d job(s) from %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().Bool("any-path", false, "Allow snapshots outside the default backup directory")
	addStoreFlags(cmd)
	return cmd
}
