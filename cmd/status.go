package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/updater"
)

var statusCmd = &cobra.Command{
	Use:   "status [server-address]",
	Short: "Show local sync state",
	Args:  usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := resolveBaseURL(args)
		if err != nil {
			return err
		}
		report, err := updater.Status(config.NewLayout(instanceDir, cfg.Client), base)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), report)
		return nil
	},
}

func printStatus(w io.Writer, r *updater.StatusReport) {
	if r.BaseURL == "" {
		fmt.Fprintln(w, "Update URL:   (none)")
	} else {
		fmt.Fprintf(w, "Update URL:   %s\n", r.BaseURL)
		fmt.Fprintf(w, "Mods bundle:  %s\n", r.ModsURL)
	}
	fmt.Fprintf(w, "Game dir:     %s\n", r.Layout.GameDir)
	fmt.Fprintf(w, "Mods dir:     %s\n", r.Layout.ModsDir)
	fmt.Fprintf(w, "Config dir:   %s\n", r.Layout.ConfigDir)
	printSnapshot(w, "Mods", r.Mods)
	printSnapshot(w, "Config", r.Config)
}

func printSnapshot(w io.Writer, label string, s updater.SnapshotStatus) {
	if !s.Exists {
		fmt.Fprintf(w, "%-13s never synced\n", label+":")
		return
	}
	fmt.Fprintf(w, "%-13s %d files, last synced %s\n", label+":", s.Entries, s.Updated.Format(time.DateTime))
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
