// Package migration creates the credit-engine schema on startup so local
// and self-hosted environments are usable out of the box.
package migration

import (
	allocationdomain "github.com/Tao119/eurekode-sub004/internal/allocation/domain"
	checkoutdomain "github.com/Tao119/eurekode-sub004/internal/checkout/domain"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	gendomain "github.com/Tao119/eurekode-sub004/internal/generation/domain"
	orgdomain "github.com/Tao119/eurekode-sub004/internal/organization/domain"
	subscriptiondomain "github.com/Tao119/eurekode-sub004/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Run(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&subscriptiondomain.Subscription{},
		&creditdomain.CreditBalance{},
		&creditdomain.TokenUsage{},
		&allocationdomain.CreditAllocation{},
		&allocationdomain.CreditAllocationRequest{},
		&gendomain.Conversation{},
		&gendomain.Message{},
		&checkoutdomain.CheckoutSession{},
	); err != nil {
		return err
	}

	return ensurePendingRequestIndex(db, log)
}

// ensurePendingRequestIndex backstops the one-pending-request-per-member
// rule under concurrent submissions. MySQL has no partial indexes; there
// the service-level pre-check is the only guard.
func ensurePendingRequestIndex(db *gorm.DB, log *zap.Logger) error {
	switch db.Dialector.Name() {
	case "postgres", "sqlite":
		return db.Exec(
			`CREATE UNIQUE INDEX IF NOT EXISTS ux_credit_allocation_requests_pending
			 ON credit_allocation_requests (org_id, requester_id)
			 WHERE status = 'pending'`,
		).Error
	default:
		log.Warn("skipping pending-request unique index",
			zap.String("dialect", db.Dialector.Name()),
		)
		return nil
	}
}
