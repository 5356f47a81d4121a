//go:generate mockgen -source=expiry.go -destination=mocks.go -package=expiry
package expiry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GlebRadaev/tourmart/internal/config"
	"github.com/GlebRadaev/tourmart/internal/domain"
	"github.com/GlebRadaev/tourmart/internal/worker"
)

type Tickets interface {
	Expirable(ctx context.Context, limit int) ([]domain.Ticket, error)
	Expire(ctx context.Context, id int) (bool, error)
}

// Sweeper periodically moves tickets whose event is over to expired.
type Sweeper struct {
	tickets  Tickets
	pool     worker.PoolI
	interval time.Duration
	batch    int

	inFlight  sync.Map
	scheduler gocron.Scheduler
}

func New(cfg *config.Config, tickets Tickets, pool worker.PoolI) *Sweeper {
	batch := cfg.ExpiryBatchSize
	if batch <= 0 {
		batch = 500
	}
	interval := cfg.ExpiryInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		tickets:  tickets,
		pool:     pool,
		interval: interval,
		batch:    batch,
	}
}

// Start schedules Sweep every interval. Runs never overlap.
func (s *Sweeper) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.Sweep(ctx)
		}),
		gocron.WithName("ticket-expiry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule expiry job: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	zap.L().Info("Ticket expiry sweeper started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

// Sweep expires one batch of overdue tickets and returns how many changed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	tickets, err := s.tickets.Expirable(ctx, s.batch)
	if err != nil {
		zap.L().Error("Failed to fetch expirable tickets", zap.Error(err))
		return 0
	}
	if len(tickets) == 0 {
		return 0
	}

	var (
		expired atomic.Int64
		running sync.WaitGroup
		g       errgroup.Group
	)
	for _, ticket := range tickets {
		id := ticket.ID
		if _, loaded := s.inFlight.LoadOrStore(id, struct{}{}); loaded {
			continue
		}

		running.Add(1)
		g.Go(func() error {
			err := s.pool.AddTask(ctx, func() error {
				defer running.Done()
				defer s.inFlight.Delete(id)

				changed, err := s.tickets.Expire(ctx, id)
				if err != nil {
					return fmt.Errorf("expire ticket %d: %w", id, err)
				}
				if changed {
					expired.Add(1)
				}
				return nil
			})
			if err != nil {
				running.Done()
				s.inFlight.Delete(id)
				return fmt.Errorf("submit ticket %d: %w", id, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zap.L().Warn("Expiry sweep incomplete", zap.Error(err))
	}
	running.Wait()

	n := int(expired.Load())
	if n > 0 {
		zap.L().Info("Expired tickets", zap.Int("count", n))
	}
	return n
}
