// Command rangectl runs the balloon range toolkit: tracking and engaging
// targets from a detection log or a camera, scoring recorded stages and
// serving the session database over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/target.range/internal/config"
	"github.com/banshee-data/target.range/internal/monitoring"
	"github.com/banshee-data/target.range/internal/version"
)

var logf = monitoring.Prefixed("rangectl")

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	quiet      bool
}

// tuning loads the tuning file named by --config, or the built-in
// defaults when none was given.
func (o *rootOptions) tuning() (*config.TuningConfig, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "rangectl",
		Short: "Balloon range toolkit: track, engage, score",
		Long: `rangectl tracks balloon targets frame by frame, decides whether each
stable track may be engaged (friend/foe colour and the no-fire zone), and
scores recorded stages from their event logs.

Detections come either from a recorded CSV/JSONL log or, in builds made
with -tags=opencv, from a camera or video file.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.quiet {
				monitoring.SetLogger(nil)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Tuning config JSON (defaults when empty)")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress diagnostic logging")

	rootCmd.AddCommand(
		newTrackCmd(opts),
		newScoreCmd(opts),
		newServeCmd(opts),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
