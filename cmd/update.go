package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/progress"
	"github.com/Maeiro/MMMMM/internal/updater"
)

var (
	updateURL      string
	noConfig       bool
	trustConfigDir bool
	showDetails    bool
)

var updateCmd = &cobra.Command{
	Use:   "update [server-address]",
	Short: "Download and apply the server's mods and config bundles",
	Long: "Download mods.zip and config.zip from the update URL of a server and apply them to the instance.\n" +
		"The URL comes from --url, or from the server registry for the given address.",
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := resolveBaseURL(args)
		if err != nil {
			return err
		}

		client := cfg.Client
		if cmd.Flags().Changed("no-config") {
			client.UpdateConfig = !noConfig
		}
		if cmd.Flags().Changed("trust-config-dir") {
			client.TrustConfigDir = trustConfigDir
		}
		opts := updater.OptionsFromConfig(instanceDir, base, client)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		events := progress.NewChannel(64)
		pumped := make(chan struct{})
		go func() {
			events.Pump(progress.NewConsole(os.Stdout, showDetails || verbose))
			close(pumped)
		}()
		opts.Sink = events

		result, runErr := updater.Run(ctx, opts)
		events.Close()
		<-pumped
		if runErr != nil {
			return runErr
		}
		if !result.OK() {
			return errors.New("update finished with failures")
		}
		return nil
	},
}

// resolveBaseURL picks --url, then the registry entry for the address
// argument. An unknown address gets its default URL recorded.
func resolveBaseURL(args []string) (string, error) {
	if updateURL != "" {
		return updateURL, nil
	}
	if len(args) == 0 {
		return "", nil
	}
	reg, err := openRegistry()
	if err != nil {
		return "", err
	}
	if added, err := reg.SetDefaultIfMissing(args[0]); err != nil {
		logging.Warnf("could not save server registry: %v\n", err)
	} else if added {
		logging.Debugf("Verbose: recorded default update URL for %s\n", args[0])
	}
	return reg.Resolve(args[0]), nil
}

func init() {
	updateCmd.Flags().StringVar(&updateURL, "url", "", "Update base URL (overrides the server registry)")
	updateCmd.Flags().BoolVar(&noConfig, "no-config", false, "Skip the config bundle")
	updateCmd.Flags().BoolVar(&trustConfigDir, "trust-config-dir", false, "Diff the whole config directory instead of the bundle entries")
	updateCmd.Flags().BoolVar(&showDetails, "details", false, "Print the detailed change list after the summary")
	rootCmd.AddCommand(updateCmd)
}
