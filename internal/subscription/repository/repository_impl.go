package repository

import (
	"context"
	"time"

	subscriptiondomain "github.com/Tao119/eurekode-sub004/internal/subscription/domain"
	"github.com/Tao119/eurekode-sub004/pkg/db/option"
	pkgrepository "github.com/Tao119/eurekode-sub004/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the storage boundary for subscription rows. Callers pass
// the gorm handle so service transactions and the sweeper share one
// implementation.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error)
	FindByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*subscriptiondomain.Subscription, error)
	FindExpiredTrials(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]subscriptiondomain.Subscription, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
}

type repository struct{}

func Provide() Repository { return &repository{} }

func (r *repository) store(db *gorm.DB) pkgrepository.Repository[subscriptiondomain.Subscription] {
	return pkgrepository.ProvideStore[subscriptiondomain.Subscription](db)
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return r.store(db).Create(ctx, subscription)
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.store(db).FindOne(ctx, &subscriptiondomain.Subscription{ID: id})
}

func (r *repository) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.store(db).FindOne(ctx, &subscriptiondomain.Subscription{UserID: &userID})
}

func (r *repository) FindByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.store(db).FindOne(ctx, &subscriptiondomain.Subscription{OrgID: &orgID})
}

// FindExpiredTrials selects unpaid trials whose window has passed. Rows
// already processed have trial_end cleared and never match again.
func (r *repository) FindExpiredTrials(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	rows, err := r.store(db).Find(ctx, &subscriptiondomain.Subscription{},
		option.Where("trial_end IS NOT NULL AND trial_end < ?", now),
		option.Where("external_payment_ref IS NULL"),
		option.Where("plan NOT IN ?", []string{"free", "org_free"}),
		option.WithSortBy(option.QuerySortBy{Field: "trial_end"}),
		option.Limit(limit),
	)
	if err != nil {
		return nil, err
	}

	records := make([]subscriptiondomain.Subscription, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		records = append(records, *row)
	}
	return records, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return r.store(db).Update(ctx, id, fields)
}
