package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/kraken_spot_bot/internal/config"
	"github.com/vitos/kraken_spot_bot/internal/domain"
	"github.com/vitos/kraken_spot_bot/internal/infrastructure/exchange"
	"github.com/vitos/kraken_spot_bot/internal/infrastructure/logger"
	"github.com/vitos/kraken_spot_bot/internal/infrastructure/storage"
	"github.com/vitos/kraken_spot_bot/internal/usecase"
	"go.uber.org/zap"
)

func killSwitchActive(path string, log *zap.Logger) bool {
	if _, err := os.Stat(path); err == nil {
		log.Warn("kill switch active", zap.String("path", path))
		return true
	}
	return false
}

func main() {
	// .env is optional; real deployments export the variables directly.
	_ = godotenv.Load()

	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Files.LogFile != "" {
		log, err = logger.NewFileLogger(cfg.Files.LogFile, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("trading bot starting", zap.String("pair", cfg.Trading.Pair))

	if cfg.Execution.DryRun {
		log.Info("*** RUNNING IN DRY-RUN MODE - NO REAL ORDERS WILL BE PLACED ***")
	} else {
		log.Warn("*** RUNNING IN LIVE MODE - REAL ORDERS WILL BE PLACED ***")
	}

	if killSwitchActive(cfg.Files.KillSwitchFile, log) {
		log.Info("exiting due to kill switch")
		return
	}

	client := exchange.NewKrakenClient(cfg.API.Base,
		time.Duration(cfg.API.RateLimitMinDelayMs)*time.Millisecond, log)

	apiKey := os.Getenv("KRAKEN_API_KEY")
	apiSecret := os.Getenv("KRAKEN_API_SECRET")
	if err := client.SetCredentials(apiKey, apiSecret); err != nil {
		if !cfg.Execution.DryRun {
			log.Fatal("API credentials required for live mode", zap.Error(err))
		}
		log.Warn("API credentials not set, private endpoints unavailable", zap.Error(err))
	}

	store := storage.NewStateFile(cfg.Files.StateFile, log)
	state, err := store.Load()
	if err != nil {
		log.Fatal("failed to load state", zap.Error(err))
	}
	state.CheckDateRollover()

	var journal *storage.SQLiteJournal
	if cfg.Files.JournalFile != "" {
		journal, err = storage.NewSQLiteJournal(cfg.Files.JournalFile)
		if err != nil {
			log.Fatal("failed to init trade journal", zap.Error(err))
		}
		defer journal.Close()
	}

	strategy := usecase.NewStrategy(cfg, state, client, log)
	executor := usecase.NewExecutor(cfg, state, client, store, journalOrNil(journal), log)
	status := usecase.NewStatusReporter(cfg, journalOrNil(journal), log)

	if cfg.Execution.DryRun {
		if state.Mode == domain.ModeFlat && state.SimQuoteBalance <= 0 {
			strategy.InitSimulation(cfg.Execution.SimInitialQuote)
			if err := store.Save(state); err != nil {
				log.Fatal("failed to save state", zap.Error(err))
			}
		}
		log.Info("simulation balances",
			zap.Float64("quote", state.SimQuoteBalance),
			zap.Float64("base", state.SimBaseBalance))
	} else {
		// Live mode: repair any drift between persisted state and the
		// account before trading on it.
		ticker := client.GetTicker(context.Background(), cfg.Trading.Pair)
		if ticker.Success {
			if err := usecase.ReconcileLiveState(context.Background(), state, client,
				store, ticker.LastPrice, log); err != nil {
				log.Fatal("failed to persist reconciled state", zap.Error(err))
			}
		} else {
			log.Error("failed to get price for reconciliation", zap.String("error", ticker.Err))
			log.Warn("proceeding without reconciliation")
		}
	}

	if cfg.API.UseWSFeed {
		feed := exchange.NewPriceFeed(cfg.API.WSEndpoint, wsPairName(cfg.Trading.Pair), log)
		if err := feed.Connect(); err != nil {
			log.Warn("ws feed unavailable, continuing with REST polling only", zap.Error(err))
		} else {
			strategy.SetPriceFeed(feed)
			defer feed.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pollInterval := time.Duration(cfg.Timing.PollIntervalSeconds) * time.Second
	log.Info("entering main loop", zap.Duration("poll_interval", pollInterval))

	for ctx.Err() == nil {
		if killSwitchActive(cfg.Files.KillSwitchFile, log) {
			log.Info("exiting due to kill switch")
			break
		}

		if client.ConsecutiveFailures() >= cfg.API.MaxConsecutiveFailures {
			log.Error("too many consecutive API failures, halting bot",
				zap.Int("failures", client.ConsecutiveFailures()))
			break
		}

		tc := strategy.Evaluate(ctx)
		status.Report(ctx, state, tc)

		if tc.Decision == domain.DecisionBuy || tc.Decision == domain.DecisionSell {
			// Execution is deliberately not tied to the shutdown context:
			// an in-flight order always runs its confirmation budget.
			if err := executor.Execute(context.Background(), tc); err != nil {
				log.Error("execution failed", zap.String("decision", string(tc.Decision)), zap.Error(err))
			}
		}

		sleepInterruptible(ctx, pollInterval)
	}

	log.Info("shutting down")
	if err := store.Save(state); err != nil {
		log.Error("final state save failed", zap.Error(err))
	}
	log.Info("bot stopped cleanly")
}

// sleepInterruptible waits for the poll interval but returns early on
// shutdown so a mid-sleep cancellation never delays exit.
func sleepInterruptible(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// wsPairName maps a REST pair code to the websocket naming scheme,
// e.g. XXBTZCAD -> XBT/CAD.
func wsPairName(pair string) string {
	if len(pair) == 8 && pair[0] == 'X' && pair[4] == 'Z' {
		return pair[1:4] + "/" + pair[5:]
	}
	return pair
}

// journalOrNil avoids handing a typed-nil *SQLiteJournal to an interface
// field, which would defeat the nil checks in the consumers.
func journalOrNil(j *storage.SQLiteJournal) domain.TradeJournal {
	if j == nil {
		return nil
	}
	return j
}
