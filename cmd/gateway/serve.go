package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ocpp-gateway/gateway/internal/configstore"
	"github.com/ocpp-gateway/gateway/internal/eventbus"
	"github.com/ocpp-gateway/gateway/internal/gwlog"
	"github.com/ocpp-gateway/gateway/internal/mapping"
	"github.com/ocpp-gateway/gateway/internal/metrics"
	"github.com/ocpp-gateway/gateway/internal/supervisor"
	"github.com/ocpp-gateway/gateway/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway process",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := gwlog.New(gwlog.Config{Level: gwlog.Level(logLevel()), JSON: true})

	reg := metrics.New(prometheus.NewRegistry())
	_ = metricsPort() // consumed by the external metrics exporter, not the core

	bus := eventbus.New(logger)
	w := watcher.New(0, logger)

	catalog := mapping.NewManager(w, bus, logger)
	if err := catalog.LoadFromDirectory(configRoot() + "/templates"); err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	catalog.EnableHotReload(configRoot()+"/templates", nil)

	store := configstore.New(configRoot(), catalog.Contains, bus, logger)
	if err := store.Initialize(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	w.Add(watcher.Registration{
		Path:       configRoot(),
		Recursive:  true,
		Extensions: []string{".yaml", ".yml", ".json"},
		Callback: func(path string) {
			if _, err := store.Reload(); err != nil {
				logger.Error("config reload failed", "error", err, "path", path)
			}
		},
	})
	w.Start()
	defer w.Stop()

	sv := supervisor.New(store, catalog, reg, logger)
	sv.Start()

	logger.Info("gateway started", "config_root", configRoot())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	sv.Shutdown()
	catalog.DisableHotReload()
	return nil
}
