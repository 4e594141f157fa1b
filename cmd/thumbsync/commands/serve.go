package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thumbsync/internal/app"
	"thumbsync/internal/logging"
	"thumbsync/internal/memory"
	"thumbsync/internal/metrics"
	"thumbsync/internal/server"
	"thumbsync/internal/startup"

	"github.com/spf13/cobra"
)

const statsInterval = time.Minute

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan scheduler and the ops HTTP listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().String("port", "", "Ops listener port")
	cmd.Flags().Bool("metrics", true, "Expose Prometheus metrics at /metrics")
	c.bind(cmd, map[string]string{
		"server.port":    "port",
		"server.metrics": "metrics",
	}, false)
	return cmd
}

func (c *CLI) serve(ctx context.Context) error {
	startTime := time.Now()
	cfg := c.cfg

	startup.LogStartup(cfg)
	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	if err := startup.PrepareDirectories(cfg); err != nil {
		return err
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	startup.LogStorageInit(a.Backend.Type(), a.BackendLocation)
	startup.LogVipsInit(cfg.Thumbnails.Vips, a.VipsAvailable())

	collector := metrics.NewCollector(a, statsInterval)
	collector.Start()
	a.StartRetention(app.DefaultRetentionInterval)

	srv := server.New(server.Options{
		Addr:           ":" + cfg.Server.Port,
		Scheduler:      a.Scheduler,
		Store:          a.Store,
		MetricsEnabled: cfg.Server.MetricsEnabled,
	})
	startup.LogHTTPRoutes(srv.Router())

	startup.LogSchedulerInit(cfg.Scan.Root, cfg.Scan.TickInterval)
	a.Scheduler.Start(ctx)
	startup.LogSchedulerStarted()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	srv.SetReady(true)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            cfg.Server.Port,
		MetricsEnabled:  cfg.Server.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	var serveErr error
	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	case <-ctx.Done():
		startup.LogShutdownInitiated(context.Cause(ctx).Error())
	case err := <-errChan:
		if err != nil {
			serveErr = fmt.Errorf("ops listener failed: %w", err)
			logging.Error("%v", serveErr)
		}
		startup.LogShutdownInitiated("listener exit")
	}

	shutdown(cfg.Server.ShutdownTimeout, srv, collector, a)
	return serveErr
}

func shutdown(timeout time.Duration, srv *server.Server, collector *metrics.Collector, a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	startup.LogShutdownStep("Stopping scheduler")
	a.Scheduler.Stop()
	startup.LogShutdownStepComplete("Scheduler stopped")

	startup.LogShutdownStep("Stopping history retention")
	a.StopRetention()
	startup.LogShutdownStepComplete("History retention stopped")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Releasing image resources")
	a.Close()
	startup.LogShutdownStepComplete("Image resources released")

	startup.LogShutdownComplete()
}
