// Package reconciliation periodically cross-checks the aggregate tables
// against each other. The engine maintains platform totals in the same
// transaction as the per-market rows, so any drift between the two means a
// write path bug or manual data surgery. Mismatches are reported, never
// repaired.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/alert"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/metrics"
	"github.com/emperorhan/prediction-indexer/internal/store"
)

type Service struct {
	chainID  model.ChainID
	reader   store.Reader
	interval time.Duration
	logger   *slog.Logger
	alerter  alert.Alerter
}

type Option func(*Service)

func WithAlerter(a alert.Alerter) Option {
	return func(s *Service) { s.alerter = a }
}

func New(chainID model.ChainID, reader store.Reader, interval time.Duration, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		chainID:  chainID,
		reader:   reader,
		interval: interval,
		logger:   logger.With("component", "reconciliation", "chain", chainID.String()),
		alerter:  &alert.NoopAlerter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one check pass immediately, then one per interval until the
// context is canceled. Check errors are logged and do not stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.CheckOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("reconciliation pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// mismatch records one failed invariant within a pass.
type mismatch struct {
	invariant string
	detail    string
}

// CheckOnce runs every invariant check and reports all mismatches found.
func (s *Service) CheckOnce(ctx context.Context) error {
	chain := s.chainID.String()
	metrics.ReconcileChecksTotal.WithLabelValues(chain).Inc()

	ps, err := s.reader.ReadPlatformStats(ctx, s.chainID)
	if err != nil {
		return fmt.Errorf("read platform stats: %w", err)
	}
	if ps == nil {
		// Nothing indexed for this chain yet.
		return nil
	}

	var mismatches []mismatch
	add := func(invariant, format string, args ...any) {
		mismatches = append(mismatches, mismatch{invariant: invariant, detail: fmt.Sprintf(format, args...)})
	}

	sumVolume, err := s.reader.SumMarketVolume(ctx, s.chainID)
	if err != nil {
		return fmt.Errorf("sum market volume: %w", err)
	}
	if sumVolume != ps.TotalVolume {
		add("platform_volume", "platform total_volume=%d, sum of market volumes=%d", ps.TotalVolume, sumVolume)
	}

	sumTvl, err := s.reader.SumMarketTvl(ctx, s.chainID)
	if err != nil {
		return fmt.Errorf("sum market tvl: %w", err)
	}
	if sumTvl != ps.TotalLiquidity {
		add("platform_liquidity", "platform total_liquidity=%d, sum of market tvl=%d", ps.TotalLiquidity, sumTvl)
	}

	ammCount, pariCount, err := s.reader.CountMarketsByType(ctx, s.chainID)
	if err != nil {
		return fmt.Errorf("count markets: %w", err)
	}
	if ammCount != ps.TotalAmmMarkets {
		add("amm_market_count", "platform total_amm_markets=%d, counted=%d", ps.TotalAmmMarkets, ammCount)
	}
	if pariCount != ps.TotalPariMarkets {
		add("pari_market_count", "platform total_pari_markets=%d, counted=%d", ps.TotalPariMarkets, pariCount)
	}
	if ammCount+pariCount != ps.TotalMarkets {
		add("market_count", "platform total_markets=%d, counted=%d", ps.TotalMarkets, ammCount+pariCount)
	}

	traderCounts, err := s.reader.MarketTraderCounts(ctx, s.chainID)
	if err != nil {
		return fmt.Errorf("market trader counts: %w", err)
	}
	err = s.reader.ListMarkets(ctx, s.chainID, func(m *model.Market) error {
		if want := traderCounts[m.Address]; m.UniqueTraders != want {
			add("unique_traders", "market %s unique_traders=%d, counted=%d", m.Address, m.UniqueTraders, want)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list markets: %w", err)
	}

	var userCount int64
	err = s.reader.ListUsers(ctx, s.chainID, func(u *model.User) error {
		userCount++
		if pnl := u.TotalWithdrawn + u.TotalWinnings - u.TotalDeposited; u.RealizedPnL != pnl {
			add("realized_pnl", "user %s realized_pnl=%d, recomputed=%d", u.Address, u.RealizedPnL, pnl)
		}
		if u.CurrentStreak > 0 && u.BestStreak < u.CurrentStreak {
			add("streak_bound", "user %s current_streak=%d exceeds best_streak=%d", u.Address, u.CurrentStreak, u.BestStreak)
		}
		if u.TotalWins < 0 || u.TotalLosses < 0 {
			add("win_loss_counts", "user %s total_wins=%d total_losses=%d", u.Address, u.TotalWins, u.TotalLosses)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if userCount != ps.TotalUsers {
		add("user_count", "platform total_users=%d, counted=%d", ps.TotalUsers, userCount)
	}

	for _, mm := range mismatches {
		metrics.ReconcileMismatches.WithLabelValues(chain, mm.invariant).Inc()
		s.logger.Error("invariant mismatch", "invariant", mm.invariant, "detail", mm.detail)
	}
	if len(mismatches) > 0 {
		s.sendAlert(ctx, mismatches)
	}
	return nil
}

func (s *Service) sendAlert(ctx context.Context, mismatches []mismatch) {
	fields := make(map[string]string, len(mismatches))
	for _, mm := range mismatches {
		// Later detail wins if one invariant fires on multiple rows, which
		// is enough for an operator to start digging.
		fields[mm.invariant] = mm.detail
	}
	err := s.alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeReconcileErr,
		Chain:   s.chainID.String(),
		Title:   "Aggregate invariant mismatch",
		Message: fmt.Sprintf("%d invariant(s) failed reconciliation", len(mismatches)),
		Fields:  fields,
	})
	if err != nil {
		s.logger.Error("failed to send reconcile alert", "error", err)
	}
}
