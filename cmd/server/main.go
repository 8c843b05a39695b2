// Package main is the entry point for Bastion, the pre-trade risk engine.
// It wires the protection components (drawdown circuit breaker, correlation
// exposure controller, volatility capper, portfolio engine, VaR monitor)
// into one gate and exposes them over HTTP for the execution engine and
// dashboards.
//
// All dependencies are constructed here and injected explicitly; no
// component reaches for globals.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/bastion/internal/config"
	"github.com/aristath/bastion/internal/modules/drawdown"
	"github.com/aristath/bastion/internal/modules/exposure"
	"github.com/aristath/bastion/internal/modules/portfolio"
	"github.com/aristath/bastion/internal/modules/risk"
	riskhandlers "github.com/aristath/bastion/internal/modules/risk/handlers"
	"github.com/aristath/bastion/internal/modules/varmonitor"
	"github.com/aristath/bastion/internal/modules/volatility"
	"github.com/aristath/bastion/internal/scheduler"
	"github.com/aristath/bastion/internal/server"
	"github.com/aristath/bastion/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Bastion")

	// Drawdown circuit breaker, restoring persisted state when present.
	ddCfg := drawdown.DefaultConfig(cfg.BaseCapital)
	ddCfg.ProtectedCapitalPct = cfg.ProtectedCapitalPct
	ddCfg.RecoveryWinStreak = cfg.RecoveryWinStreak
	ddCfg.RecoveryProfitThreshold = cfg.RecoveryProfitThreshold
	ddCfg.StatePath = cfg.StatePath()
	breaker := drawdown.NewCircuitBreaker(ddCfg, log)

	// Portfolio engine: correlation matrix, groups, exposure accounting.
	pfCfg := portfolio.DefaultConfig()
	pfCfg.MaxTotalExposure = cfg.MaxTotalExposure
	pfCfg.MaxGroupExposure = cfg.MaxCorrGroupExposure
	pfCfg.CorrelationThreshold = cfg.CorrelationThreshold
	pfCfg.MinMatrixConfidence = cfg.MinMatrixConfidence
	pfCfg.RefreshInterval = cfg.CorrelationRefreshEvery
	pfCfg.LookbackPeriods = cfg.CorrelationLookback
	pfCfg.DailyVolatility = cfg.DailyVolatilityAssumed
	engine := portfolio.NewEngine(pfCfg, log)

	// Exposure controller resolves groups through the engine, falling back
	// to the static asset-class table.
	exCfg := exposure.DefaultConfig()
	exCfg.MaxGroupExposurePct = cfg.MaxGroupExposurePct
	exposureCtrl := exposure.NewController(exCfg, engine, log)

	volCfg := volatility.DefaultConfig()
	volCfg.ATRPeriod = cfg.ATRPeriod
	capper := volatility.NewCapper(volCfg, log)

	// VaR monitor polls the portfolio engine for value and positions.
	vmCfg := varmonitor.DefaultConfig()
	vmCfg.DailyVolatility = cfg.DailyVolatilityAssumed
	vmCfg.Limit95Pct = cfg.VaRLimit95Pct
	vmCfg.Limit99Pct = cfg.VaRLimit99Pct
	vmCfg.Interval = cfg.MonitorInterval
	vmCfg.HistoryWindow = cfg.HistoricalWindow
	monitor := varmonitor.NewMonitor(vmCfg,
		func() float64 { return breaker.Snapshot().CurrentCapital },
		func() []varmonitor.Position {
			positions := engine.Positions()
			out := make([]varmonitor.Position, 0, len(positions))
			for _, p := range positions {
				out = append(out, varmonitor.Position{
					Symbol:    p.Symbol,
					SizeUSD:   p.SizeUSD,
					Direction: p.Direction,
					PnL:       p.UnrealizedPnL,
				})
			}
			return out
		},
		log)
	monitor.RegisterBreachCallback(func(b varmonitor.Breach) {
		log.Warn().
			Str("breach_id", b.ID).
			Float64("confidence", b.Confidence).
			Float64("var_value", b.VaRValue).
			Float64("var_limit", b.VaRLimit).
			Msg("Risk limit breach")
	})

	system := risk.NewSystem(breaker, exposureCtrl, capper, engine, monitor, log)

	store, err := varmonitor.NewStore(cfg.RiskDBPath(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open risk database")
	}
	defer store.Close()

	// Background work: the VaR polling loop plus archival and pruning.
	monitor.Start()

	sched := scheduler.New(log)
	archiveJob := scheduler.NewSnapshotArchiveJob(monitor, store, log)
	if err := sched.AddJob(cfg.SnapshotArchiveSchedule, archiveJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register archive job")
	}
	pruneJob := scheduler.NewArchivePruneJob(store, cfg.SnapshotRetention, log)
	if err := sched.AddJob(cfg.SnapshotPruneSchedule, pruneJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register prune job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		RiskHandlers: riskhandlers.NewHandler(system, monitor, store, log),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	sched.Stop()
	monitor.Stop()

	// Flush anything the scheduler had not archived yet.
	if err := sched.RunNow(archiveJob); err != nil {
		log.Error().Err(err).Msg("Final archive pass failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Bastion stopped")
}
