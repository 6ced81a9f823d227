package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/target.range/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the session database schema",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "range.db", "Session database")

	// open skips NewDB so the schema is only touched by the subcommand.
	open := func() (*db.DB, error) {
		return db.OpenDB(dbPath)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := open()
				if err != nil {
					return err
				}
				defer d.Close()
				if err := d.MigrateUp(db.MigrationsFS()); err != nil {
					return err
				}
				return printVersion(cmd, d)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := open()
				if err != nil {
					return err
				}
				defer d.Close()
				if err := d.MigrateDown(db.MigrationsFS()); err != nil {
					return err
				}
				return printVersion(cmd, d)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := open()
				if err != nil {
					return err
				}
				defer d.Close()
				return printVersion(cmd, d)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, d *db.DB) error {
	v, dirty, err := d.MigrateVersion(db.MigrationsFS())
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
