package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/target.range/internal/db"
	"github.com/banshee-data/target.range/internal/events"
	"github.com/banshee-data/target.range/internal/scoring"
)

type scoreOptions struct {
	stage   int
	logPath string
	dbPath  string
	session string
	end     float64
}

func newScoreCmd(root *rootOptions) *cobra.Command {
	o := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a stage from its event log",
		Long: `score reads a stage's events, from a CSV log (--log) or a recorded
session (--db and --session), and prints the base score, the time bonus
and the total.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.tuning()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("end") {
				o.end = cfg.GetStageDuration().Seconds()
			}

			evs, err := o.load()
			if err != nil {
				return err
			}
			res, err := scoring.ComputeStage(o.stage, evs, o.end)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().IntVar(&o.stage, "stage", 1, "Stage number (1, 2 or 3)")
	cmd.Flags().StringVar(&o.logPath, "log", "", "Event log CSV")
	cmd.Flags().StringVar(&o.dbPath, "db", "", "Session database")
	cmd.Flags().StringVar(&o.session, "session", "", "Session id within --db")
	cmd.Flags().Float64Var(&o.end, "end", scoring.DefaultDuration, "Stage length in seconds")
	cmd.MarkFlagsMutuallyExclusive("log", "db")
	cmd.MarkFlagsOneRequired("log", "db")
	cmd.MarkFlagsRequiredTogether("db", "session")
	return cmd
}

func (o *scoreOptions) load() ([]events.Event, error) {
	if o.logPath != "" {
		f, err := os.Open(filepath.Clean(o.logPath))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		evs, err := events.ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.logPath, err)
		}
		return evs, nil
	}

	d, err := db.NewDB(o.dbPath)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	if _, err := d.Session(o.session); err != nil {
		return nil, fmt.Errorf("session %s: %w", o.session, err)
	}
	return d.Events(o.session, "")
}
