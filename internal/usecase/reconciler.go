package usecase

import (
	"context"

	"github.com/vitos/kraken_spot_bot/internal/domain"
	"go.uber.org/zap"
)

// dustThreshold is the smallest base-asset balance treated as a real holding.
const dustThreshold = 0.000001

// ReconcileLiveState aligns persisted state with actual account balances.
// It runs once, in live mode only, before the main loop: a restart after a
// crash or a manual deposit must never leave the bot believing the wrong
// position.
func ReconcileLiveState(ctx context.Context, state *domain.TradingState, client domain.Exchange,
	store domain.StateStore, currentPrice float64, log *zap.Logger) error {

	log.Info("reconciling state with live balances")

	balance := client.GetBalance(ctx)
	if !balance.Success {
		log.Error("failed to fetch balances for reconciliation", zap.String("error", balance.Err))
		log.Warn("proceeding with persisted state, manual verification recommended")
		return nil
	}

	if balance.BaseBalance > dustThreshold {
		if state.Mode != domain.ModeLong {
			log.Warn("reconciliation: found base balance but state is FLAT, setting to LONG")
			state.Mode = domain.ModeLong
		}

		state.BaseAmount = balance.BaseBalance

		if state.EntryPrice == nil {
			// Approximation only: the true entry is unknown here.
			log.Warn("ENTRY PRICE MISSING WHILE HOLDING BASE ASSET",
				zap.Float64("fallback_entry_price", currentPrice))
			log.Warn("fallback entry may not reflect the actual entry, verify manually")
			state.EntryPrice = domain.Float(currentPrice)
		}

		log.Info("reconciled",
			zap.String("mode", string(state.Mode)),
			zap.Float64("base_amount", state.BaseAmount),
			zap.Float64("entry_price", *state.EntryPrice))
	} else {
		if state.Mode != domain.ModeFlat {
			log.Warn("reconciliation: no base balance but state is LONG, setting to FLAT")
			state.Mode = domain.ModeFlat
		}

		state.BaseAmount = 0

		log.Info("reconciled",
			zap.String("mode", string(state.Mode)),
			zap.Float64("quote_balance", balance.QuoteBalance))
	}

	return store.Save(state)
}
