package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/content"
	"github.com/pd-triglav/contentd/internal/store"
	"github.com/pd-triglav/contentd/internal/task"
)

// Prewarmer is the slice of the orchestrator the scheduler drives.
type Prewarmer interface {
	EnsureContent(ctx context.Context, contentType store.ContentType) (content.Resolution, error)
}

// DigestPruner deletes generated digests older than a cutoff.
type DigestPruner interface {
	DeleteDigestsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler pre-warms the daily content ahead of the first reader and runs
// the weekly digest cleanup. A Redis lock keeps replicas from doubling up.
type Scheduler struct {
	Cfg      appconfig.ScheduleConfig
	Store    DigestPruner
	Rdb      *redis.Client
	Orch     Prewarmer
	Registry *task.Registry
	Stop     chan struct{}

	logger      *log.Logger
	lastWarm    *time.Time
	lastCleanup *time.Time
	now         func() time.Time
}

func (s *Scheduler) Start() {
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	if s.now == nil {
		s.now = time.Now
	}
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	now := s.now()

	if isDue(s.Cfg.Cron, s.lastWarm, now) && s.acquireLock(ctx, "sched:lock:prewarm") {
		s.prewarm(ctx)
		t := now
		s.lastWarm = &t
	}

	if isDue(s.Cfg.CleanupCron, s.lastCleanup, now) && s.acquireLock(ctx, "sched:lock:cleanup") {
		s.cleanup(ctx, now)
		t := now
		s.lastCleanup = &t
	}

	if s.Registry != nil {
		s.Registry.Evict()
	}
}

// acquireLock takes a short distributed lock so only one replica fires a
// given job per window. Without Redis the scheduler runs unguarded.
func (s *Scheduler) acquireLock(ctx context.Context, key string) bool {
	if s.Rdb == nil {
		return true
	}
	ok, _ := s.Rdb.SetNX(ctx, key, "1", 2*time.Minute).Result()
	return ok
}

func (s *Scheduler) prewarm(ctx context.Context) {
	for _, contentType := range []store.ContentType{store.TypeEventOfDay, store.TypeDailyDigest} {
		res, err := s.Orch.EnsureContent(ctx, contentType)
		if err != nil {
			s.logger.Printf("prewarm %s: %v", contentType, err)
			continue
		}
		s.logger.Printf("prewarm %s: %s", contentType, res.State)
	}
}

func (s *Scheduler) cleanup(ctx context.Context, now time.Time) {
	retention := s.Cfg.DigestRetentionDays
	if retention <= 0 {
		retention = 30
	}
	cutoff := now.AddDate(0, 0, -retention)
	n, err := s.Store.DeleteDigestsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Printf("digest cleanup failed: %v", err)
		return
	}
	s.logger.Printf("digest cleanup removed %d records before %s", n, cutoff.Format("2006-01-02"))
}

// isDue determines whether a job with cronSpec should run now given its
// last run time. Supports "@daily", "@hourly", and 5-field cron expressions.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
