// Package main is the entry point for the rebalance decision engine. It
// wires the chain, venue and market data clients into the analysis, planning
// and execution pipeline, then serves the HTTP API and the scheduled
// analysis cycles until shutdown.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sonicagent/engine/internal/clients/birdeye"
	"github.com/sonicagent/engine/internal/clients/chain"
	"github.com/sonicagent/engine/internal/clients/jupiter"
	"github.com/sonicagent/engine/internal/config"
	"github.com/sonicagent/engine/internal/database"
	"github.com/sonicagent/engine/internal/domain"
	"github.com/sonicagent/engine/internal/events"
	"github.com/sonicagent/engine/internal/modules/allocation"
	"github.com/sonicagent/engine/internal/modules/execution"
	"github.com/sonicagent/engine/internal/modules/planner"
	"github.com/sonicagent/engine/internal/modules/quotes"
	"github.com/sonicagent/engine/internal/modules/signals"
	"github.com/sonicagent/engine/internal/modules/trading"
	"github.com/sonicagent/engine/internal/scheduler"
	"github.com/sonicagent/engine/internal/server"
	"github.com/sonicagent/engine/internal/services"
	"github.com/sonicagent/engine/internal/wallet"
	"github.com/sonicagent/engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting rebalance engine")

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "engine.db"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	eventManager := events.NewManager(events.NewBus(), log)

	// Clients. The market data client doubles as the price source for
	// portfolio valuation and the stablecoin oracle for planning.
	market := birdeye.NewClient(cfg.MarketDataBaseURL, cfg.MarketDataAPIKey, cfg.CallTimeout, log)
	ledger := chain.NewClient(cfg.ChainRPCURL, cfg.AgentAPIURL, market, cfg.CallTimeout, log)
	venue := jupiter.NewClient(cfg.VenueBaseURL, cfg.ChainRPCURL, cfg.CallTimeout, log)

	var signer domain.Signer
	if cfg.WalletPrivateKey != "" {
		keypair, err := wallet.NewSignerFromBase58(cfg.WalletPrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load wallet keypair")
		}
		signer = keypair
		log.Info().Str("pubkey", keypair.Pubkey()).Msg("Wallet keypair loaded")
	} else {
		signer = wallet.Disabled{}
		log.Warn().Msg("No wallet private key configured, execution disabled")
	}

	// Storage and pipeline modules.
	trades := trading.NewTradeRepository(db, log)
	recs := trading.NewRecommendationRepository(db, time.Hour, log)
	notifier := services.NewEventNotifier(eventManager, log)

	coordinator := execution.NewCoordinator(venue, signer, ledger, trades, notifier, eventManager, execution.Config{
		InterActionDelay: cfg.InterActionDelay,
		ActionTimeout:    2 * cfg.CallTimeout,
		MintCooldown:     time.Hour,
	}, log)

	indicators := signals.NewIndicatorService(market, 15*time.Minute, log)
	snapshotPath := filepath.Join(cfg.DataDir, "indicators.snapshot")
	if err := indicators.LoadSnapshot(snapshotPath); err != nil {
		log.Debug().Err(err).Msg("No indicator snapshot loaded")
	}

	trend := signals.NewTrendDetector(market, chain.NativeMint, log)
	engine := signals.NewEngine(market, indicators, trend, []signals.Strategy{
		signals.NewDCAStrategy(),
		signals.NewMomentumStrategy(),
		signals.NewMeanReversionStrategy(),
		signals.NewTrendFollowingStrategy(),
	}, chain.NativeMint, cfg.QuoteConcurrency, log)

	agent := services.NewAgentService(
		ledger,
		allocation.NewAnalyzer(log),
		planner.NewPlanner(market, log),
		quotes.NewResolver(venue, cfg.QuoteRetries, cfg.QuoteConcurrency, log),
		coordinator,
		engine,
		recs,
		trades,
		eventManager,
		market,
		services.Defaults{
			RebalanceThresholdPct: cfg.RebalanceThresholdPct,
			MaxSlippageBps:        cfg.MaxSlippageBps,
		},
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live price stream, optional. The engine works without it, spot
	// prices are just fetched on demand instead.
	if cfg.MarketDataWSURL != "" {
		stream := birdeye.NewPriceStream(cfg.MarketDataWSURL, cfg.MarketDataAPIKey, market, watchedMints(ctx, ledger, cfg.Wallets), log)
		go stream.Run(ctx)
	}

	sched := scheduler.New(agent, cfg.Wallets, 10*time.Minute, log)
	if len(cfg.Wallets) > 0 {
		if err := sched.Schedule(cfg.CycleSchedule); err != nil {
			log.Fatal().Err(err).Str("spec", cfg.CycleSchedule).Msg("Invalid cycle schedule")
		}
		sched.Start()
	} else {
		log.Warn().Msg("No wallets configured, analysis cycles disabled")
	}

	srv := server.New(agent, cfg.Port, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := indicators.SaveSnapshot(snapshotPath); err != nil {
		log.Warn().Err(err).Msg("Failed to save indicator snapshot")
	}

	log.Info().Msg("Engine stopped")
}

// watchedMints collects the target allocation mints across all configured
// wallets for the price stream subscription. Best effort: wallets whose
// config cannot be read at startup are skipped.
func watchedMints(ctx context.Context, ledger domain.LedgerClient, wallets []string) []string {
	seen := map[string]bool{chain.NativeMint: true}
	mints := []string{chain.NativeMint}

	for _, w := range wallets {
		config, err := ledger.GetAgentConfig(ctx, w)
		if err != nil {
			continue
		}
		for _, target := range config.TargetAllocations {
			if !seen[target.Mint] {
				seen[target.Mint] = true
				mints = append(mints, target.Mint)
			}
		}
	}
	return mints
}
