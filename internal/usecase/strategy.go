package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/kraken_spot_bot/internal/config"
	"github.com/vitos/kraken_spot_bot/internal/domain"
	"go.uber.org/zap"
)

// PriceSource supplies an out-of-band price sample, e.g. a websocket ticker
// feed. The strategy prefers it over the REST ticker when it is fresher.
type PriceSource interface {
	Last() (price float64, ts int64, ok bool)
}

// Strategy is the decision engine: a two-state machine (FLAT, LONG) that
// turns price, indicators and persisted trade history into one of
// NOOP/BUY/SELL/BLOCKED per cycle. It never mutates TradingState except for
// the trailing-stop ratchet; fills are applied by the Executor.
type Strategy struct {
	cfg    *config.Config
	state  *domain.TradingState
	client domain.Exchange
	feed   PriceSource // optional
	ind    *Indicators
	log    *zap.Logger
}

func NewStrategy(cfg *config.Config, state *domain.TradingState, client domain.Exchange, log *zap.Logger) *Strategy {
	return &Strategy{
		cfg:    cfg,
		state:  state,
		client: client,
		ind:    NewIndicators(cfg.Filters.TrendWindowShort, cfg.Filters.TrendWindowLong, cfg.Filters.ATRWindow),
		log:    log,
	}
}

// SetPriceFeed attaches an optional streaming price source.
func (s *Strategy) SetPriceFeed(feed PriceSource) {
	s.feed = feed
}

// InitSimulation seeds the simulated quote balance for dry-run mode. An open
// simulated position is left untouched.
func (s *Strategy) InitSimulation(initialQuote float64) {
	if s.state.Mode == domain.ModeFlat {
		s.state.SimQuoteBalance = initialQuote
		s.state.SimBaseBalance = 0
	}
	s.log.Info("simulation initialized", zap.Float64("quote_balance", initialQuote))
}

// Evaluate runs one decision cycle. The first applicable outcome wins:
// stale/failed price, cooldown, daily cap and failure ceiling all block;
// otherwise FLAT mode looks for an entry and LONG mode for an exit.
func (s *Strategy) Evaluate(ctx context.Context) *domain.TradeContext {
	tc := &domain.TradeContext{Decision: domain.DecisionNoop}

	if s.state.CheckDateRollover() {
		s.log.Info("date rollover, trade counter reset", zap.String("date", s.state.TradesDate))
	}

	if !s.fetchPrice(ctx, tc) {
		return tc
	}

	s.updateIndicators(tc)

	if s.checkBlockingConditions(tc) {
		return tc
	}

	if s.state.Mode == domain.ModeFlat {
		tc.Sizing = s.calculateSizing(ctx, tc)
		if !tc.Sizing.CanTrade {
			tc.Decision = domain.DecisionBlocked
			tc.Reason = tc.Sizing.BlockReason
			return tc
		}

		if s.checkMarketConditions(tc) {
			return tc
		}

		if s.checkEntryCondition(tc) {
			tc.Decision = domain.DecisionBuy
		} else {
			tc.Decision = domain.DecisionNoop
		}
		return tc
	}

	// LONG mode: compute levels up front so even a NOOP cycle logs them.
	s.computeExitLevels(tc)

	if s.checkExitCondition(tc) {
		tc.Decision = domain.DecisionSell
	} else {
		tc.Decision = domain.DecisionNoop
	}
	return tc
}

func (s *Strategy) fetchPrice(ctx context.Context, tc *domain.TradeContext) bool {
	ticker := s.client.GetTicker(ctx, s.cfg.Trading.Pair)
	if !ticker.Success {
		s.log.Error("failed to fetch ticker", zap.String("error", ticker.Err))
		tc.Decision = domain.DecisionBlocked
		tc.Reason = "Price fetch failed: " + ticker.Err
		return false
	}

	tc.CurrentPrice = ticker.LastPrice
	tc.BidPrice = ticker.BidPrice
	tc.AskPrice = ticker.AskPrice
	tc.PriceTimestamp = ticker.Timestamp

	// A streaming feed may hold a fresher last-trade sample.
	if s.feed != nil {
		if price, ts, ok := s.feed.Last(); ok && ts > tc.PriceTimestamp {
			tc.CurrentPrice = price
			tc.PriceTimestamp = ts
		}
	}

	age := time.Now().Unix() - tc.PriceTimestamp
	tc.PriceStale = age > s.cfg.API.StalePriceSeconds
	if tc.PriceStale {
		s.log.Warn("price is stale", zap.Int64("age_seconds", age))
		tc.Decision = domain.DecisionBlocked
		tc.Reason = "Price data is stale"
		return false
	}

	return true
}

func (s *Strategy) updateIndicators(tc *domain.TradeContext) {
	s.ind.Update(tc.CurrentPrice)
	tc.ATR = s.ind.ATR()
	tc.SMAShort = s.ind.SMAShort()
	tc.SMALong = s.ind.SMALong()
	tc.SpreadPct = SpreadPct(tc.BidPrice, tc.AskPrice)
}

func (s *Strategy) checkBlockingConditions(tc *domain.TradeContext) bool {
	cooldown := time.Duration(s.cfg.Timing.CooldownSeconds) * time.Second
	if s.state.IsInCooldown(cooldown) {
		remaining := s.state.CooldownRemaining(cooldown)
		tc.Decision = domain.DecisionBlocked
		tc.Reason = fmt.Sprintf("Cooldown active: %ds remaining", int64(remaining.Seconds()))
		return true
	}

	if s.state.TradesToday >= s.cfg.Timing.MaxTradesPerDay {
		tc.Decision = domain.DecisionBlocked
		tc.Reason = fmt.Sprintf("Max trades per day reached: %d/%d",
			s.state.TradesToday, s.cfg.Timing.MaxTradesPerDay)
		return true
	}

	if s.client.ConsecutiveFailures() >= s.cfg.API.MaxConsecutiveFailures {
		tc.Decision = domain.DecisionBlocked
		tc.Reason = fmt.Sprintf("Too many consecutive API failures: %d", s.client.ConsecutiveFailures())
		return true
	}

	return false
}

func (s *Strategy) checkMarketConditions(tc *domain.TradeContext) bool {
	if s.cfg.Filters.MaxSpreadPct > 0 && tc.SpreadPct > s.cfg.Filters.MaxSpreadPct {
		tc.Decision = domain.DecisionBlocked
		tc.Reason = fmt.Sprintf("Spread too wide: %.4f%%", tc.SpreadPct*100)
		return true
	}

	if !s.passesVolatilityFilter(tc) {
		tc.Decision = domain.DecisionBlocked
		tc.Reason = fmt.Sprintf("Volatility too low (ATR): %.2f", tc.ATR)
		return true
	}

	if !s.passesTrendFilter(tc) {
		tc.Decision = domain.DecisionBlocked
		tc.Reason = "Trend filter: SMA short below SMA long"
		return true
	}

	return false
}

func (s *Strategy) passesVolatilityFilter(tc *domain.TradeContext) bool {
	if s.cfg.Filters.MinATRPct <= 0 || tc.CurrentPrice <= 0 {
		return true
	}
	if tc.ATR <= 0 {
		return false
	}
	return tc.ATR/tc.CurrentPrice >= s.cfg.Filters.MinATRPct
}

func (s *Strategy) passesTrendFilter(tc *domain.TradeContext) bool {
	if !s.cfg.Filters.RequireTrendUp {
		return true
	}
	if tc.SMAShort <= 0 || tc.SMALong <= 0 {
		return false
	}
	return tc.SMAShort >= tc.SMALong
}

func (s *Strategy) calculateSizing(ctx context.Context, tc *domain.TradeContext) domain.PositionSizing {
	var equity, available float64

	if s.cfg.Execution.DryRun {
		equity = s.state.SimQuoteBalance + s.state.SimBaseBalance*tc.CurrentPrice
		available = s.state.SimQuoteBalance
	} else {
		balance := s.client.GetBalance(ctx)
		if !balance.Success {
			return domain.PositionSizing{
				BlockReason: "Balance fetch failed: " + balance.Err,
			}
		}
		available = balance.QuoteBalance
		equity = balance.QuoteBalance + balance.BaseBalance*tc.CurrentPrice
	}

	return ComputeSizing(equity, available, tc.CurrentPrice, SizingParams{
		RiskPerTradePct: s.cfg.Sizing.RiskPerTradePct,
		StopLossPct:     s.cfg.Trading.StopLossPct,
		MaxPositionPct:  s.cfg.Sizing.MaxPositionPct,
		MinReservePct:   s.cfg.Sizing.MinReservePct,
	})
}

func (s *Strategy) checkEntryCondition(tc *domain.TradeContext) bool {
	// First trade ever: enter immediately.
	if s.state.ExitPrice == nil {
		tc.Reason = "First trade: entering immediately"
		return true
	}

	// Subsequent trades require the price to reset below the last exit.
	tc.RebuyPrice = *s.state.ExitPrice * (1.0 - s.cfg.Trading.RebuyResetPct)

	if tc.CurrentPrice <= tc.RebuyPrice {
		tc.Reason = fmt.Sprintf("Price reset condition met: %.2f <= rebuy_price %.2f",
			tc.CurrentPrice, tc.RebuyPrice)
		return true
	}

	tc.Reason = fmt.Sprintf("Waiting for price reset: current=%.2f, rebuy_price=%.2f",
		tc.CurrentPrice, tc.RebuyPrice)
	return false
}

func (s *Strategy) computeExitLevels(tc *domain.TradeContext) {
	if s.state.EntryPrice == nil {
		return
	}
	entry := *s.state.EntryPrice
	if s.cfg.Exits.UseDynamicTPSL && tc.ATR > 0 {
		tc.TPPrice = entry + tc.ATR*s.cfg.Exits.TPATRMult
		tc.SLPrice = entry - tc.ATR*s.cfg.Exits.SLATRMult
	} else {
		tc.TPPrice = entry * (1.0 + s.cfg.Trading.TakeProfitPct)
		tc.SLPrice = entry * (1.0 - s.cfg.Trading.StopLossPct)
	}
}

func (s *Strategy) checkExitCondition(tc *domain.TradeContext) bool {
	if s.state.EntryPrice == nil {
		// Data-integrity failure: never close a position on malformed state.
		s.log.Error("in LONG mode but entry_price is null")
		tc.Reason = "Error: missing entry price in LONG mode"
		return false
	}

	entry := *s.state.EntryPrice

	if !s.state.PartialTakeProfitDone && s.cfg.Exits.PartialTPPct > 0 {
		partialTP := entry * (1.0 + s.cfg.Exits.PartialTPPct)
		if tc.CurrentPrice >= partialTP {
			tc.Reason = "Partial take profit triggered"
			tc.IsPartialExit = true
			held := s.heldBase()
			tc.SellVolume = held * s.cfg.Exits.PartialTPSell
			return true
		}
	}

	if s.cfg.Exits.TrailingStopPct > 0 {
		candidate := tc.CurrentPrice * (1.0 - s.cfg.Exits.TrailingStopPct)
		// Ratchets up only, never down.
		if s.state.TrailingStopPrice == nil || candidate > *s.state.TrailingStopPrice {
			s.state.TrailingStopPrice = domain.Float(candidate)
		}
		if tc.CurrentPrice <= *s.state.TrailingStopPrice {
			tc.Reason = "Trailing stop triggered"
			return true
		}
	}

	if s.cfg.Exits.MaxHoldSeconds > 0 && s.state.EntryTime != nil {
		held := time.Now().Unix() - *s.state.EntryTime
		if held >= s.cfg.Exits.MaxHoldSeconds {
			tc.Reason = "Time-based exit triggered"
			return true
		}
	}

	if tc.CurrentPrice >= tc.TPPrice {
		tc.Reason = fmt.Sprintf("Take profit triggered: %.2f >= tp_price %.2f",
			tc.CurrentPrice, tc.TPPrice)
		return true
	}

	if tc.CurrentPrice <= tc.SLPrice {
		tc.Reason = fmt.Sprintf("Stop loss triggered: %.2f <= sl_price %.2f",
			tc.CurrentPrice, tc.SLPrice)
		return true
	}

	tc.Reason = fmt.Sprintf("Holding position: price=%.2f, entry=%.2f, tp=%.2f, sl=%.2f",
		tc.CurrentPrice, entry, tc.TPPrice, tc.SLPrice)
	return false
}

// heldBase is the base amount currently held, from simulated or live state.
func (s *Strategy) heldBase() float64 {
	if s.cfg.Execution.DryRun {
		return s.state.SimBaseBalance
	}
	return s.state.BaseAmount
}
