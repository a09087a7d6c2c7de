package jobs

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/FinnKramer/PawMarket/internal/pkg/cache"
	"github.com/FinnKramer/PawMarket/internal/pkg/lifecycle"
	"github.com/FinnKramer/PawMarket/internal/pkg/metrics/counter"
)

const (
	expireSchedule   = "0 */15 * * * *" // every 15 minutes
	repairSchedule   = "0 5 * * * *"    // hourly, offset from expiry sweep
	countersSchedule = "30 * * * * *"   // every minute

	lockExpiry   = 10 * time.Minute
	jobTimeout   = 5 * time.Minute
	repairWindow = 30 * time.Minute
)

// Manager owns the background schedules: expiring overdue listings and
// repairing subscriptions that never got linked to their listing. Jobs are
// guarded by Redis locks so concurrent app instances never run the same
// sweep twice.
type Manager struct {
	engine *lifecycle.Engine
	cron   *cron.Cron
	rs     *redsync.Redsync
}

// NewManager wires the scheduler against the lifecycle engine. The Redis
// pool comes from the shared cache client.
func NewManager(engine *lifecycle.Engine) *Manager {
	pool := goredis.NewPool(cache.GetClient())
	return &Manager{
		engine: engine,
		cron:   cron.New(cron.WithSeconds()),
		rs:     redsync.New(pool),
	}
}

// Start registers the schedules and launches the scheduler goroutine.
func (m *Manager) Start() error {
	if _, err := m.cron.AddFunc(expireSchedule, func() {
		m.runLocked("jobs:expire-listings", m.expireListings)
	}); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc(repairSchedule, func() {
		m.runLocked("jobs:repair-subscription-links", m.repairLinks)
	}); err != nil {
		return err
	}

	if _, err := m.cron.AddFunc(countersSchedule, func() {
		if err := counter.FlushAll(); err != nil {
			log.Errorf("[Jobs] flushing view counters failed: %v", err)
		}
	}); err != nil {
		return err
	}

	m.cron.Start()
	log.Info("[Jobs] scheduler started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Info("[Jobs] scheduler stopped")
}

// runLocked executes fn under a distributed lock. A busy lock means another
// instance is already on it; that is normal operation, not an error.
func (m *Manager) runLocked(lockKey string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	mutex := m.rs.NewMutex(lockKey, redsync.WithExpiry(lockExpiry), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		log.Infof("[Jobs] %s: lock busy, skipping run", lockKey)
		return
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			log.Warnf("[Jobs] %s: unlock failed: %v", lockKey, err)
		}
	}()

	if err := fn(ctx); err != nil {
		log.Errorf("[Jobs] %s failed: %v", lockKey, err)
	}
}

func (m *Manager) expireListings(ctx context.Context) error {
	count, err := m.engine.ExpireDueListings(ctx, time.Now())
	if err != nil {
		return err
	}
	if count > 0 {
		log.Infof("[Jobs] expired %d overdue listings", count)
	}
	return nil
}

func (m *Manager) repairLinks(ctx context.Context) error {
	count, err := m.engine.RepairSubscriptionLinks(ctx, time.Now().Add(-repairWindow))
	if err != nil {
		return err
	}
	if count > 0 {
		log.Infof("[Jobs] repaired %d subscription links", count)
	}
	return nil
}
