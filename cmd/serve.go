package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/metrics"
	"github.com/Maeiro/MMMMM/internal/publish"
	"github.com/Maeiro/MMMMM/internal/server"
)

var (
	servePort    int
	serveRoot    string
	servePublish bool
	serveWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve published bundles to clients over HTTP",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sc := cfg.Server
		if cmd.Flags().Changed("port") {
			sc.Port = servePort
		}
		if cmd.Flags().Changed("root") {
			sc.Root = serveRoot
		}
		srvCfg := server.FromConfig(instanceDir, sc)

		var m metrics.Metrics = metrics.Noop{}
		if sc.MetricsAddr != "" {
			m = metrics.NewProm("mmmmm")
			shutdown := startMetrics(sc.MetricsAddr)
			defer shutdown()
		}

		builder := publish.NewBuilder(publish.FromConfig(instanceDir, srvCfg.Root, cfg.Publish), nil, m)
		if servePublish {
			if _, err := builder.BuildAll(ctx); err != nil {
				logging.Warnf("%v\n", err)
			}
		}

		srv := server.New(srvCfg, server.WithMetrics(m))
		if err := srv.Start(ctx); err != nil {
			return err
		}
		logging.Infof("Serving %s on port %d\n", srv.Root(), srv.Port())

		// A --port flag pins the port; otherwise follow config file edits.
		if !cmd.Flags().Changed("port") {
			loader.Watch(func(old, updated *config.Config) {
				if old != nil && old.Server.Port == updated.Server.Port {
					return
				}
				if err := srv.Restart(ctx, updated.Server.Port); err != nil {
					logging.Warnf("restart on port %d failed: %v\n", updated.Server.Port, err)
				}
			}, func(err error) {
				logging.Warnf("config reload failed: %v\n", err)
			})
		}

		if serveWatch {
			go func() {
				err := builder.Watch(ctx, publish.WatchOptions{Debounce: cfg.Publish.Debounce})
				if err != nil {
					logging.Warnf("%v\n", err)
				}
			}()
		}

		<-ctx.Done()
		logging.Infoln("Shutting down...")
		return srv.Stop(context.Background())
	},
}

// startMetrics serves /metrics on addr and returns its shutdown func.
func startMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	ms := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warnf("metrics server: %v\n", err)
		}
	}()
	logging.Infof("Metrics on http://%s/metrics\n", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ms.Shutdown(ctx)
	}
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Listen port")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Directory to serve (default: MMMMM/shared-files in the instance dir)")
	serveCmd.Flags().BoolVar(&servePublish, "publish", true, "Build bundles before serving")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Rebuild bundles when mods or config change")
	rootCmd.AddCommand(serveCmd)
}
