package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/kraken_spot_bot/internal/config"
	"github.com/vitos/kraken_spot_bot/internal/domain"
	"go.uber.org/zap"
)

const (
	fillPollInterval = 500 * time.Millisecond
	fillMaxAttempts  = 20
)

// Executor turns BUY/SELL decisions into fills. Persisted state is mutated
// if and only if a fill is confirmed closed; a failed submission or an
// unconfirmed fill leaves TradingState exactly as it was.
//
// Callers pass a context that is NOT tied to shutdown: an in-flight order
// must run its bounded confirmation budget to completion so the process never
// exits with an order of unknown outcome.
type Executor struct {
	cfg     *config.Config
	state   *domain.TradingState
	client  domain.Exchange
	store   domain.StateStore
	journal domain.TradeJournal // optional
	log     *zap.Logger

	pollInterval time.Duration
	maxAttempts  int
}

func NewExecutor(cfg *config.Config, state *domain.TradingState, client domain.Exchange,
	store domain.StateStore, journal domain.TradeJournal, log *zap.Logger) *Executor {
	return &Executor{
		cfg:          cfg,
		state:        state,
		client:       client,
		store:        store,
		journal:      journal,
		log:          log,
		pollInterval: fillPollInterval,
		maxAttempts:  fillMaxAttempts,
	}
}

func (e *Executor) Execute(ctx context.Context, tc *domain.TradeContext) error {
	switch tc.Decision {
	case domain.DecisionBuy:
		return e.executeBuy(ctx, tc)
	case domain.DecisionSell:
		return e.executeSell(ctx, tc)
	case domain.DecisionNoop, domain.DecisionBlocked:
		return nil
	default:
		return fmt.Errorf("unknown decision: %s", tc.Decision)
	}
}

func (e *Executor) executeBuy(ctx context.Context, tc *domain.TradeContext) error {
	e.log.Info("executing BUY",
		zap.Bool("simulated", e.cfg.Execution.DryRun),
		zap.Float64("volume", tc.Sizing.BaseToBuy),
		zap.Float64("price", tc.CurrentPrice))

	if e.cfg.Execution.DryRun {
		return e.simulateFill(ctx, "buy", tc.Sizing.BaseToBuy, tc.CurrentPrice)
	}

	order := e.client.PlaceMarketOrder(ctx, e.cfg.Trading.Pair, "buy", tc.Sizing.BaseToBuy)
	if !order.Success {
		return fmt.Errorf("failed to place buy order: %s", order.Err)
	}

	fill, err := e.waitForFill(ctx, order.TxID)
	if err != nil {
		// State untouched: the fill was never confirmed.
		return fmt.Errorf("failed to confirm buy fill: %w", err)
	}

	now := time.Now().Unix()
	e.state.EntryPrice = domain.Float(fill.AvgPrice)
	e.state.BaseAmount = fill.Volume
	e.state.Mode = domain.ModeLong
	e.state.TradesToday++
	e.state.LastTradeTime = domain.Int(now)
	e.state.EntryTime = domain.Int(now)
	e.state.PartialTakeProfitDone = false
	if e.cfg.Exits.TrailingStopPct > 0 {
		e.state.TrailingStopPrice = domain.Float(fill.AvgPrice * (1.0 - e.cfg.Exits.TrailingStopPct))
	} else {
		e.state.TrailingStopPrice = nil
	}

	if err := e.store.Save(e.state); err != nil {
		return err
	}
	e.recordTrade(ctx, fill.TxID, "buy", fill.Volume, fill.AvgPrice, fill.Fee, false)

	e.log.Info("BUY filled",
		zap.String("txid", fill.TxID),
		zap.Float64("volume", fill.Volume),
		zap.Float64("avg_price", fill.AvgPrice),
		zap.Float64("fee", fill.Fee))
	return nil
}

func (e *Executor) executeSell(ctx context.Context, tc *domain.TradeContext) error {
	held := e.heldBase()
	volume := held
	if tc.SellVolume > 0 {
		volume = tc.SellVolume
	}
	if volume <= 0 {
		return fmt.Errorf("sell volume is zero or negative")
	}
	if volume > held {
		volume = held
	}

	e.log.Info("executing SELL",
		zap.Bool("simulated", e.cfg.Execution.DryRun),
		zap.Float64("volume", volume),
		zap.Float64("price", tc.CurrentPrice))

	if e.cfg.Execution.DryRun {
		return e.simulateFill(ctx, "sell", volume, tc.CurrentPrice)
	}

	order := e.client.PlaceMarketOrder(ctx, e.cfg.Trading.Pair, "sell", volume)
	if !order.Success {
		return fmt.Errorf("failed to place sell order: %s", order.Err)
	}

	fill, err := e.waitForFill(ctx, order.TxID)
	if err != nil {
		return fmt.Errorf("failed to confirm sell fill: %w", err)
	}

	now := time.Now().Unix()
	e.state.ExitPrice = domain.Float(fill.AvgPrice)
	e.state.BaseAmount = max(0, e.state.BaseAmount-fill.Volume)
	if tc.IsPartialExit && e.state.BaseAmount > 0 {
		e.state.PartialTakeProfitDone = true
		e.state.Mode = domain.ModeLong
	} else {
		e.state.Mode = domain.ModeFlat
		e.state.EntryTime = nil
		e.state.TrailingStopPrice = nil
	}
	e.state.TradesToday++
	e.state.LastTradeTime = domain.Int(now)

	if err := e.store.Save(e.state); err != nil {
		return err
	}
	e.recordTrade(ctx, fill.TxID, "sell", fill.Volume, fill.AvgPrice, fill.Fee, false)

	e.log.Info("SELL filled",
		zap.String("txid", fill.TxID),
		zap.Float64("volume", fill.Volume),
		zap.Float64("avg_price", fill.AvgPrice),
		zap.Float64("fee", fill.Fee))

	if e.state.EntryPrice != nil {
		entry := *e.state.EntryPrice
		pnlPct := (fill.AvgPrice - entry) / entry * 100.0
		e.log.Info("trade P&L", zap.Float64("pnl_pct_before_fees", pnlPct))
	}
	return nil
}

// waitForFill polls the order until it reaches a terminal status, within a
// bounded attempt budget. Market orders normally fill within the first poll.
func (e *Executor) waitForFill(ctx context.Context, txid string) (domain.OrderResult, error) {
	var result domain.OrderResult

	for i := 0; i < e.maxAttempts; i++ {
		time.Sleep(e.pollInterval)

		result = e.client.QueryOrder(ctx, txid)

		if result.Success && result.Status == "closed" {
			return result, nil
		}

		if result.Status == "canceled" || result.Status == "expired" {
			return result, fmt.Errorf("order %s was %s", txid, result.Status)
		}

		e.log.Info("waiting for fill",
			zap.String("txid", txid),
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", e.maxAttempts))
	}

	return result, fmt.Errorf("fill unconfirmed: timeout waiting for order %s", txid)
}

// simulateFill applies a dry-run fill synchronously against the simulated
// balances. Sells carry the configured round-trip fee; buys do not.
func (e *Executor) simulateFill(ctx context.Context, side string, volume, price float64) error {
	now := time.Now().Unix()

	if side == "buy" {
		cost := volume * price

		e.state.SimQuoteBalance -= cost
		e.state.SimBaseBalance = volume

		e.state.EntryPrice = domain.Float(price)
		e.state.BaseAmount = volume
		e.state.Mode = domain.ModeLong
		e.state.TradesToday++
		e.state.LastTradeTime = domain.Int(now)
		e.state.EntryTime = domain.Int(now)
		e.state.PartialTakeProfitDone = false
		if e.cfg.Exits.TrailingStopPct > 0 {
			e.state.TrailingStopPrice = domain.Float(price * (1.0 - e.cfg.Exits.TrailingStopPct))
		} else {
			e.state.TrailingStopPrice = nil
		}

		e.log.Info("[SIMULATED] BUY filled",
			zap.Float64("volume", volume),
			zap.Float64("price", price),
			zap.Float64("cost", cost),
			zap.Float64("sim_quote", e.state.SimQuoteBalance),
			zap.Float64("sim_base", e.state.SimBaseBalance))

		if err := e.store.Save(e.state); err != nil {
			return err
		}
		e.recordTrade(ctx, simulatedTxID(), "buy", volume, price, 0, true)
		return nil
	}

	proceeds := volume * price
	fee := proceeds * e.cfg.Execution.SimFeePctRoundtrip
	proceeds -= fee

	e.state.SimQuoteBalance += proceeds
	e.state.SimBaseBalance = max(0, e.state.SimBaseBalance-volume)

	var pnl, pnlPct float64
	if e.state.EntryPrice != nil {
		cost := volume * *e.state.EntryPrice
		pnl = volume*price - cost - fee
		pnlPct = pnl / cost * 100.0
	}

	e.state.ExitPrice = domain.Float(price)
	e.state.BaseAmount = max(0, e.state.BaseAmount-volume)
	if e.state.SimBaseBalance > 0 {
		e.state.PartialTakeProfitDone = true
	} else {
		e.state.Mode = domain.ModeFlat
		e.state.EntryTime = nil
		e.state.TrailingStopPrice = nil
	}
	e.state.TradesToday++
	e.state.LastTradeTime = domain.Int(now)

	e.log.Info("[SIMULATED] SELL filled",
		zap.Float64("volume", volume),
		zap.Float64("price", price),
		zap.Float64("proceeds", proceeds),
		zap.Float64("fee", fee),
		zap.Float64("pnl", pnl),
		zap.Float64("pnl_pct", pnlPct),
		zap.Float64("sim_quote", e.state.SimQuoteBalance),
		zap.Float64("sim_base", e.state.SimBaseBalance))

	if err := e.store.Save(e.state); err != nil {
		return err
	}
	e.recordTrade(ctx, simulatedTxID(), "sell", volume, price, fee, true)
	return nil
}

func (e *Executor) recordTrade(ctx context.Context, txid, side string, volume, price, fee float64, simulated bool) {
	if e.journal == nil {
		return
	}
	trade := &domain.TradeRecord{
		TxID:      txid,
		Pair:      e.cfg.Trading.Pair,
		Side:      side,
		Volume:    volume,
		Price:     price,
		Fee:       fee,
		Simulated: simulated,
		CreatedAt: time.Now(),
	}
	if err := e.journal.SaveTrade(ctx, trade); err != nil {
		e.log.Error("failed to journal trade", zap.Error(err))
	}
}

func (e *Executor) heldBase() float64 {
	if e.cfg.Execution.DryRun {
		return e.state.SimBaseBalance
	}
	return e.state.BaseAmount
}

func simulatedTxID() string {
	return "SIM-" + uuid.NewString()
}
