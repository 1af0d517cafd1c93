package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/clock"
	orgdomain "github.com/Tao119/eurekode-sub004/internal/organization/domain"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	subscriptiondomain "github.com/Tao119/eurekode-sub004/internal/subscription/domain"
	subscriptionrepo "github.com/Tao119/eurekode-sub004/internal/subscription/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&orgdomain.Organization{},
		&subscriptiondomain.Subscription{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newTestSweeper(t *testing.T, db *gorm.DB, clk clock.Clock) *Sweeper {
	t.Helper()
	sweeper, err := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  subscriptionrepo.Provide(),
	})
	if err != nil {
		t.Fatalf("failed to create sweeper: %v", err)
	}
	return sweeper
}

func seedTrial(t *testing.T, db *gorm.DB, node *snowflake.Node, userID, orgID snowflake.ID, tier plandomain.Tier, trialEnd time.Time, paymentRef *string) snowflake.ID {
	t.Helper()
	record := &subscriptiondomain.Subscription{
		ID:                 node.Generate(),
		Plan:               tier,
		Status:             subscriptiondomain.SubscriptionStatusTrialing,
		TrialEnd:           &trialEnd,
		ExternalPaymentRef: paymentRef,
		CurrentPeriodStart: trialEnd.AddDate(0, 0, -subscriptiondomain.TrialDays),
		CurrentPeriodEnd:   trialEnd.AddDate(0, 1, -subscriptiondomain.TrialDays),
	}
	if userID != 0 {
		id := userID
		record.UserID = &id
	}
	if orgID != 0 {
		id := orgID
		record.OrgID = &id
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to seed subscription: %v", err)
	}
	return record.ID
}

func TestSweepDowngradesExpiredUnpaidTrials(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
	node, _ := snowflake.NewNode(1)
	sweeper := newTestSweeper(t, db, clock.NewFakeClock(now))

	expired := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 5)
	paidRef := "sub_ext_123"

	expiredID := seedTrial(t, db, node, snowflake.ID(1), 0, plandomain.TierPro, expired, nil)
	paidID := seedTrial(t, db, node, snowflake.ID(2), 0, plandomain.TierPro, expired, &paidRef)
	activeID := seedTrial(t, db, node, snowflake.ID(3), 0, plandomain.TierStarter, future, nil)

	assert.NoError(t, sweeper.RunOnce(context.Background()))

	var downgraded subscriptiondomain.Subscription
	assert.NoError(t, db.Where("id = ?", expiredID).First(&downgraded).Error)
	assert.Equal(t, plandomain.TierFree, downgraded.Plan)
	assert.Nil(t, downgraded.TrialEnd)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, downgraded.Status)
	assert.True(t, downgraded.CurrentPeriodStart.Equal(now))
	assert.True(t, downgraded.CurrentPeriodEnd.Equal(now.AddDate(1, 0, 0)))

	var paid subscriptiondomain.Subscription
	assert.NoError(t, db.Where("id = ?", paidID).First(&paid).Error)
	assert.Equal(t, plandomain.TierPro, paid.Plan)
	assert.NotNil(t, paid.TrialEnd)

	var active subscriptiondomain.Subscription
	assert.NoError(t, db.Where("id = ?", activeID).First(&active).Error)
	assert.Equal(t, plandomain.TierStarter, active.Plan)
}

func TestSweepIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
	node, _ := snowflake.NewNode(1)
	sweeper := newTestSweeper(t, db, clock.NewFakeClock(now))

	seedTrial(t, db, node, snowflake.ID(1), 0, plandomain.TierPro, now.AddDate(0, 0, -1), nil)
	seedTrial(t, db, node, snowflake.ID(2), 0, plandomain.TierMax, now.AddDate(0, 0, -3), nil)

	count, err := sweeper.sweep(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	// Processed rows have trial_end cleared and never match again.
	count, err = sweeper.sweep(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSweepPropagatesOrgPlan(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
	node, _ := snowflake.NewNode(1)
	sweeper := newTestSweeper(t, db, clock.NewFakeClock(now))

	orgID := snowflake.ID(99)
	assert.NoError(t, db.Create(&orgdomain.Organization{
		ID:   orgID,
		Name: "Acme",
		Plan: plandomain.TierOrgBusiness,
	}).Error)
	subID := seedTrial(t, db, node, 0, orgID, plandomain.TierOrgBusiness, now.AddDate(0, 0, -1), nil)

	assert.NoError(t, sweeper.RunOnce(context.Background()))

	var sub subscriptiondomain.Subscription
	assert.NoError(t, db.Where("id = ?", subID).First(&sub).Error)
	assert.Equal(t, plandomain.TierOrgFree, sub.Plan)

	var org orgdomain.Organization
	assert.NoError(t, db.Where("id = ?", orgID).First(&org).Error)
	assert.Equal(t, plandomain.TierOrgFree, org.Plan)
}
