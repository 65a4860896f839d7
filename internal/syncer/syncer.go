// Package syncer copies the current year's Squarespace orders into the order store.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/orderbot/orderbot-sync/internal/dao/orderdao"
	"github.com/orderbot/orderbot-sync/internal/dao/rundao"
	"github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/orderbot/orderbot-sync/internal/squarespace"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// Job is the name used for sync locks and run history
const Job = string(rundao.JobSync)

// cleanupTimeout bounds the lock release and run record writes that follow a run
const cleanupTimeout = 10 * time.Second

// OrderSource lists upstream orders
type OrderSource interface {
	ListOrders(ctx context.Context, input squarespace.ListOrdersInput) ([]squarespace.Order, error)
}

// OrderStore persists orders
type OrderStore interface {
	InsertOrder(ctx context.Context, order squarespace.Order) (orderdao.InsertResult, error)
}

// Locker guards against overlapping runs
type Locker interface {
	Lock(ctx context.Context, runID string) (bool, error)
	Unlock(ctx context.Context, runID string) error
}

// Recorder writes run history
type Recorder interface {
	Start(ctx context.Context, runID string) error
	Finish(ctx context.Context, runID string, summary Summary, runErr error) error
}

// Summary describes one sync run
type Summary struct {
	RunID          string
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
	Orders         int
	LineItems      int
	Inserted       int
	Duplicates     int
	Duration       time.Duration
}

type Option func(*Syncer)

// WithLocker guards Run with locker
func WithLocker(locker Locker) Option {
	return func(s *Syncer) {
		s.locker = locker
	}
}

// WithRecorder records each Run
func WithRecorder(recorder Recorder) Option {
	return func(s *Syncer) {
		s.recorder = recorder
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

type Syncer struct {
	source   OrderSource
	store    OrderStore
	locker   Locker
	recorder Recorder
	now      func() time.Time
}

func New(source OrderSource, store OrderStore, opts ...Option) *Syncer {
	s := &Syncer{
		source: source,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the [Jan 1, Dec 30) range of the UTC year containing now
func Window(now time.Time) (after, before time.Time) {
	year := now.UTC().Year()
	after = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	before = time.Date(year, time.December, 30, 0, 0, 0, 0, time.UTC)
	return after, before
}

// Run fetches the year's orders and inserts every line item
func (s *Syncer) Run(ctx context.Context) (summary Summary, err error) {
	started := s.now()
	summary.RunID = ksuid.New().String()
	summary.ModifiedAfter, summary.ModifiedBefore = Window(started)

	logger := zerolog.Ctx(ctx).With().Str("run_id", summary.RunID).Logger()
	ctx = logger.WithContext(ctx)

	if s.locker != nil {
		acquired, err := s.locker.Lock(ctx, summary.RunID)
		if err != nil {
			return summary, fmt.Errorf("failed to acquire sync lock: %w", err)
		}
		if !acquired {
			return summary, errors.ErrSyncInProgress
		}
		defer func() {
			ctx, cancel := cleanupContext(ctx)
			defer cancel()
			if err := s.locker.Unlock(ctx, summary.RunID); err != nil {
				logger.Warn().Err(err).Msg("failed to release sync lock")
			}
		}()
	}

	if s.recorder != nil {
		if err := s.recorder.Start(ctx, summary.RunID); err != nil {
			return summary, fmt.Errorf("failed to record run start: %w", err)
		}
		defer func() {
			ctx, cancel := cleanupContext(ctx)
			defer cancel()
			if ferr := s.recorder.Finish(ctx, summary.RunID, summary, err); ferr != nil {
				logger.Warn().Err(ferr).Msg("failed to record run result")
			}
		}()
	}

	defer func() {
		summary.Duration = s.now().Sub(started)
	}()

	logger.Info().
		Time("modified_after", summary.ModifiedAfter).
		Time("modified_before", summary.ModifiedBefore).
		Msg("fetching orders")

	orders, err := s.source.ListOrders(ctx, squarespace.ListOrdersInput{
		ModifiedAfter:  summary.ModifiedAfter,
		ModifiedBefore: summary.ModifiedBefore,
	})
	if err != nil {
		return summary, fmt.Errorf("failed to list orders: %w", err)
	}

	if len(orders) == 0 {
		logger.Warn().Msg("no orders since the beginning of the year")
		return summary, nil
	}

	var total orderdao.InsertResult
	for _, order := range orders {
		result, err := s.store.InsertOrder(ctx, order)
		if err != nil {
			return summary, fmt.Errorf("failed to insert order %s: %w", order.ID, err)
		}
		total.Add(result)
		summary.Orders++
		summary.LineItems += len(order.LineItems)
		summary.Inserted = total.Inserted
		summary.Duplicates = total.Duplicates
	}

	if len(total.DuplicateIDs) > 0 {
		logger.Debug().Strs("line_item_ids", total.DuplicateIDs).Msg("skipped line items already stored")
	}

	logger.Info().
		Int("orders", summary.Orders).
		Int("line_items", summary.LineItems).
		Int("inserted", summary.Inserted).
		Int("duplicates", summary.Duplicates).
		Msg("sync complete")

	return summary, nil
}

// cleanupContext keeps ctx values but survives cancellation of the invocation
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
