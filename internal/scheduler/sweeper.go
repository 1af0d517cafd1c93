// Package scheduler runs the trial lifecycle sweep: unpaid trials whose
// window has passed are downgraded to the free tier.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/clock"
	obsmetrics "github.com/Tao119/eurekode-sub004/internal/observability/metrics"
	orgdomain "github.com/Tao119/eurekode-sub004/internal/organization/domain"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	subscriptiondomain "github.com/Tao119/eurekode-sub004/internal/subscription/domain"
	subscriptionrepo "github.com/Tao119/eurekode-sub004/internal/subscription/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    subscriptionrepo.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
	Config  Config              `optional:"true"`
}

// Sweeper downgrades expired, unpaid trials. Each run is idempotent:
// processing clears trial_end, so a processed row never matches the
// expiry predicate again.
type Sweeper struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	repo    subscriptionrepo.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) (*Sweeper, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Repo == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "trial_sweeper")),
		cfg:     p.Config.withDefaults(),
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}, nil
}

// RunOnce executes a single sweep with the configured job timeout.
func (s *Sweeper) RunOnce(parent context.Context) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if s.metrics != nil {
		s.metrics.SweeperRuns.Inc()
		defer func() {
			s.metrics.SweeperRunDurations.Observe(time.Since(start).Seconds())
		}()
	}

	downgraded, err := s.sweep(ctx, start)
	if downgraded > 0 {
		s.log.Info("downgraded expired trials", zap.Int("count", downgraded))
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("trial sweep timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("expire_trials: %w", err)
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.FindExpiredTrials(ctx, s.db, now, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var downgraded int
	for _, subscription := range expired {
		if err := s.downgrade(ctx, subscription, now); err != nil {
			return downgraded, err
		}
		downgraded++
		if s.metrics != nil {
			s.metrics.SweeperDowngrades.Inc()
		}
	}
	return downgraded, nil
}

// downgrade resolves one trial in its own transaction so a mid-batch
// failure never leaves earlier rows half-applied. Clearing trial_end is
// what makes the sweep idempotent.
func (s *Sweeper) downgrade(ctx context.Context, subscription subscriptiondomain.Subscription, now time.Time) error {
	target := plandomain.TierFree
	if subscription.OrgID != nil {
		target = plandomain.TierOrgFree
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, subscription.ID, map[string]any{
			"plan":                 target,
			"status":               subscriptiondomain.SubscriptionStatusActive,
			"trial_end":            nil,
			"current_period_start": now,
			// Free tier is not billed monthly; the quota window resets a
			// year out and any later upgrade rewrites it.
			"current_period_end": now.AddDate(1, 0, 0),
			"updated_at":         now,
		}); err != nil {
			return err
		}

		if subscription.OrgID != nil {
			if err := tx.Model(&orgdomain.Organization{}).
				Where("id = ?", *subscription.OrgID).
				Updates(map[string]any{
					"plan":       target,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
		}

		s.log.Info("trial expired without payment",
			zap.String("subscription_id", subscription.ID.String()),
			zap.String("from_plan", string(subscription.Plan)),
			zap.String("to_plan", string(target)),
		)
		return nil
	})
}

// RunForever sweeps immediately, then on every tick until ctx ends.
func (s *Sweeper) RunForever(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.log.Error("trial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("trial sweep failed", zap.Error(err))
			}
		}
	}
}
