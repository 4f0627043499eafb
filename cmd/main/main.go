package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"battery-observer/src/config"
	"battery-observer/src/ingest"
	"battery-observer/src/logger"
	"battery-observer/src/metrics"
	"battery-observer/src/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "", "path to an optional YAML config file; environment variables override it")
	writeConfig := flag.String("write-config", "", "write the effective configuration to this path and exit")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *writeConfig != "" {
		if err := conf.Save(*writeConfig); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		return
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)
	defer appLogger.Sync()
	appLogger.Info("Tracking %d entities, threshold %.1f%%, stale after %d minutes",
		len(conf.Monitor.Entities), conf.Monitor.BatteryThreshold, conf.Monitor.UnresponsiveMinutes)

	// Lifecycle Management
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Setup Components
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := utils.NewReadingStore(conf.Monitor.Entities, conf.Monitor.SeriesCapacity)

	archiver, err := setupArchives(ctx, conf.MConfig, m, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init archives: %v", err)
	}

	notifier, closeNotifiers, err := setupNotifiers(conf.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init notifiers: %v", err)
	}

	processor := ingest.NewProcessor(conf.MConfig, store, notifier, archiver, m, logger.NewLogger(conf.MConfig, "Processor"))
	source := setupSource(conf.MConfig)
	source.OnStateChange(m.ObserveState)

	// 5. Start workers and servers
	var wg sync.WaitGroup
	archiver.Start(ctx, &wg)
	dashboard, health := startServers(ctx, &wg, conf, store, source.State, m, appLogger)
	source.OnStateChange(health.ObserveState)

	if err := source.Start(ctx, processor.Handle, &wg); err != nil {
		appLogger.Critical("Failed to start event source: %v", err)
	}

	<-ctx.Done()

	// 6. Shutdown
	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dashboard.Stop(shutdownCtx); err != nil {
		appLogger.Warning("Dashboard shutdown: %v", err)
	}

	wg.Wait()
	processor.Wait()
	archiver.Close()
	closeNotifiers()
	appLogger.Info("Shutdown complete.")
}
