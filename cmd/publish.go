package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/publish"
	"github.com/Maeiro/MMMMM/internal/server"
)

var publishWatch bool

var publishCmd = &cobra.Command{
	Use:       "publish [mods|config|all]",
	Short:     "Build the mods and config bundles served to clients",
	Args:      usageArgs(cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs)),
	ValidArgs: []string{"mods", "config", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "all"
		if len(args) == 1 {
			target = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := server.FromConfig(instanceDir, cfg.Server).Root
		b := publish.NewBuilder(publish.FromConfig(instanceDir, out, cfg.Publish), nil, nil)

		var results []publish.Result
		var err error
		switch target {
		case "mods":
			var r publish.Result
			r, err = b.BuildMods(ctx)
			results = append(results, r)
		case "config":
			var r publish.Result
			r, err = b.BuildConfig(ctx)
			results = append(results, r)
		default:
			results, err = b.BuildAll(ctx)
		}
		for _, r := range results {
			logging.Infoln(describeResult(r))
		}
		if err != nil {
			return err
		}

		if publishWatch {
			return b.Watch(ctx, publish.WatchOptions{
				Debounce: cfg.Publish.Debounce,
				OnBuild: func(r publish.Result, err error) {
					if err == nil {
						logging.Infoln(describeResult(r))
					}
				},
			})
		}
		return nil
	},
}

func describeResult(r publish.Result) string {
	if r.Skipped {
		return fmt.Sprintf("%s: skipped (%s)", r.Bundle, r.Reason)
	}
	return fmt.Sprintf("%s: %d files -> %s", r.Bundle, r.Files, r.Path)
}

func init() {
	publishCmd.Flags().BoolVarP(&publishWatch, "watch", "w", false, "Keep running and rebuild on changes")
	rootCmd.AddCommand(publishCmd)
}
