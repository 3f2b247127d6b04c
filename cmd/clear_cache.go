package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/updater"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete downloaded bundles and checksum snapshots",
	Long:  "Delete the downloaded bundles and checksum snapshots. The next update reports every file as added.",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := updater.ClearCache(config.NewLayout(instanceDir, cfg.Client))
		for _, p := range removed {
			logging.Infof("Removed %s\n", p)
		}
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			logging.Infoln("Nothing to clear.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCacheCmd)
}
