package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vitos/kraken_spot_bot/internal/config"
	"github.com/vitos/kraken_spot_bot/internal/domain"
	"github.com/vitos/kraken_spot_bot/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// StatusReporter emits one structured status line per cycle and maintains a
// read-only JSON snapshot file for external observability. Every decision is
// auditable from the status line alone, including blocked cycles.
type StatusReporter struct {
	cfg     *config.Config
	journal domain.TradeJournal // optional
	path    string              // snapshot file, empty disables
	log     *zap.Logger
}

func NewStatusReporter(cfg *config.Config, journal domain.TradeJournal, log *zap.Logger) *StatusReporter {
	return &StatusReporter{
		cfg:     cfg,
		journal: journal,
		path:    cfg.Files.StatusFile,
		log:     log,
	}
}

type statusSnapshot struct {
	Time              string   `json:"time"`
	Price             float64  `json:"price"`
	Mode              string   `json:"mode"`
	EntryPrice        *float64 `json:"entry_price"`
	ExitPrice         *float64 `json:"exit_price"`
	TPPrice           float64  `json:"tp_price"`
	SLPrice           float64  `json:"sl_price"`
	CooldownRemaining int64    `json:"cooldown_remaining_s"`
	TradesToday       int      `json:"trades_today"`
	MaxTradesPerDay   int      `json:"max_trades_per_day"`
	Equity            float64  `json:"equity"`
	Available         float64  `json:"available"`
	PositionSize      float64  `json:"position_size"`
	Decision          string   `json:"decision"`
	Reason            string   `json:"reason"`
}

// Report logs the status line, refreshes the snapshot file and appends the
// cycle audit row. Reporting failures are logged, never propagated: a broken
// observability path must not stop trading.
func (r *StatusReporter) Report(ctx context.Context, state *domain.TradingState, tc *domain.TradeContext) {
	cooldown := time.Duration(r.cfg.Timing.CooldownSeconds) * time.Second
	remaining := int64(state.CooldownRemaining(cooldown).Seconds())

	fields := []zap.Field{
		zap.Float64("price", tc.CurrentPrice),
		zap.String("mode", string(state.Mode)),
		zap.Float64p("entry", state.EntryPrice),
		zap.Float64p("exit", state.ExitPrice),
		zap.Float64("tp", tc.TPPrice),
		zap.Float64("sl", tc.SLPrice),
		zap.Int64("cooldown_s", remaining),
		zap.Int("trades_today", state.TradesToday),
		zap.Int("max_trades", r.cfg.Timing.MaxTradesPerDay),
		zap.String("date", state.TradesDate),
		zap.Float64("equity", tc.Sizing.Equity),
		zap.Float64("available", tc.Sizing.Available),
		zap.Float64("risk", tc.Sizing.RiskAmount),
		zap.Float64("position", tc.Sizing.Position),
		zap.Float64("max_position", tc.Sizing.MaxPosition),
		zap.String("decision", string(tc.Decision)),
		zap.String("reason", tc.Reason),
	}
	r.log.Info("status", fields...)

	if r.path != "" {
		snap := statusSnapshot{
			Time:              time.Now().Format(time.RFC3339),
			Price:             tc.CurrentPrice,
			Mode:              string(state.Mode),
			EntryPrice:        state.EntryPrice,
			ExitPrice:         state.ExitPrice,
			TPPrice:           tc.TPPrice,
			SLPrice:           tc.SLPrice,
			CooldownRemaining: remaining,
			TradesToday:       state.TradesToday,
			MaxTradesPerDay:   r.cfg.Timing.MaxTradesPerDay,
			Equity:            tc.Sizing.Equity,
			Available:         tc.Sizing.Available,
			PositionSize:      tc.Sizing.Position,
			Decision:          string(tc.Decision),
			Reason:            tc.Reason,
		}
		if data, err := json.MarshalIndent(snap, "", "  "); err == nil {
			if err := storage.WriteAtomic(r.path, append(data, '\n')); err != nil {
				r.log.Error("failed to write status file", zap.Error(err))
			}
		}
	}

	if r.journal != nil {
		cycle := &domain.CycleRecord{
			Price:     tc.CurrentPrice,
			Mode:      string(state.Mode),
			Decision:  string(tc.Decision),
			Reason:    tc.Reason,
			CreatedAt: time.Now(),
		}
		if err := r.journal.SaveCycle(ctx, cycle); err != nil {
			r.log.Error("failed to journal cycle", zap.Error(err))
		}
	}
}
