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

	"market-pipeline/src/config"
	"market-pipeline/src/logger"
	"market-pipeline/src/server"
	"market-pipeline/src/utils"
)

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf, conf.Name)

	// 4. Setup Components
	store, err := setupDatabase(conf.MConfig, appLogger)
	if err != nil {
		os.Exit(1)
	}
	defer store.Close()

	comps, err := setupComponents(conf.MConfig, store, appLogger)
	if err != nil {
		os.Exit(1)
	}
	svc := comps.pipeline

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 5. Bootstrap markets, symbols are validated against them from here on
	if err := bootstrapMarkets(ctx, comps, appLogger); err != nil {
		appLogger.Critical("Market bootstrap failed: %v", err)
	}

	// 6. Start Servers
	srv := server.NewFastAPIServer(conf.MConfig, svc, appLogger.Named("Server"))
	svc.Publish = srv.Broadcast

	grpcServer, err := startServers(srv, svc, conf, *configPath, appLogger)
	if err != nil {
		appLogger.Critical("%v", err)
	}

	// 7. Live trades
	var wg sync.WaitGroup
	if comps.stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTradeStream(ctx, comps.stream, comps.gateway, svc, appLogger.Named("TradeStream"))
		}()
	}

	// 8. Scheduled jobs
	interval := time.Duration(conf.Pipeline.RefreshIntervalSeconds) * time.Second
	scheduler := utils.NewScheduler(appLogger.Named("Scheduler"))
	if err := scheduler.AddJob("refresh", utils.EverySeconds(conf.Pipeline.RefreshIntervalSeconds), func() {
		// A cycle may run past one tick; cap it so a hung request cannot stall refreshes
		cycleCtx, cycleCancel := context.WithTimeout(ctx, max(interval, time.Duration(conf.Network.RequestTimeout)*time.Second))
		defer cycleCancel()
		svc.RefreshAll(cycleCtx)
	}); err != nil {
		appLogger.Critical("%v", err)
	}
	if conf.Heatmap.PrewarmCron != "" {
		if err := scheduler.AddJob("heatmap-prewarm", conf.Heatmap.PrewarmCron, func() {
			svc.Prewarm(ctx)
		}); err != nil {
			appLogger.Critical("%v", err)
		}
		go svc.Prewarm(ctx)
	}
	scheduler.Start()

	appLogger.Info("Pipeline running for %v", svc.Symbols())
	<-ctx.Done()

	// 9. Shutdown
	appLogger.Info("Shutting down...")
	scheduler.Stop()
	if err := srv.Stop(); err != nil {
		appLogger.Warning("HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	wg.Wait()
	appLogger.Info("Shutdown complete.")
}
