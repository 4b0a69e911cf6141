package market

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Sweeper periodically refunds expired orders on behalf of a keeper address.
// Expiry stays cooperative: the sweeper is just another caller of
// ProcessExpiredOrder.
type Sweeper struct {
	engine   *Engine
	keeper   [20]byte
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a sweeper with a one minute default interval.
func NewSweeper(engine *Engine, keeper [20]byte, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	logger := slog.Default()
	if engine != nil && engine.logger != nil {
		logger = engine.logger
	}
	return &Sweeper{engine: engine, keeper: keeper, interval: interval, logger: logger.With("component", "sweeper")}
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.engine == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(); err != nil {
				s.logger.Warn("expired order sweep failed", "error", err)
			}
		}
	}
}

// Sweep performs one pass and returns how many orders were refunded. Orders
// settled by someone else in the meantime are skipped.
func (s *Sweeper) Sweep() (int, error) {
	expired, err := s.engine.ExpiredOrders(s.engine.now())
	if err != nil {
		s.engine.metrics.ObserveSweep(0, err)
		return 0, err
	}
	refunded := 0
	var errs []error
	for _, order := range expired {
		err := s.engine.ProcessExpiredOrder(order.ID, s.keeper)
		switch {
		case err == nil:
			refunded++
			s.logger.Info("refunded expired order", "orderId", hexID(order.ID))
		case errors.Is(err, ErrInvalidOrder), errors.Is(err, ErrDeadlineNotPassed):
			continue
		default:
			errs = append(errs, err)
		}
	}
	joined := errors.Join(errs...)
	s.engine.metrics.ObserveSweep(refunded, joined)
	return refunded, joined
}
