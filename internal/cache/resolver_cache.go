package cache

import (
	"time"

	subscriptiondomain "github.com/Tao119/eurekode-sub004/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
)

const defaultSubscriptionTTL = 45 * time.Second

// PlanResolverCache stores hot-path subscription lookups for plan
// resolution. Balances and allocations are never cached; their counters
// move on every consumption.
type PlanResolverCache interface {
	GetSubscription(ownerID snowflake.ID) (*subscriptiondomain.Subscription, bool)
	SetSubscription(ownerID snowflake.ID, sub *subscriptiondomain.Subscription)
	InvalidateSubscription(ownerID snowflake.ID)
}

type planResolverCache struct {
	subscriptions Cache[snowflake.ID, *subscriptiondomain.Subscription]
	subTTL        time.Duration
}

// NewPlanResolverCache returns an in-memory cache tuned for plan reads.
func NewPlanResolverCache() PlanResolverCache {
	return &planResolverCache{
		subscriptions: NewTTLCache[snowflake.ID, *subscriptiondomain.Subscription](),
		subTTL:        defaultSubscriptionTTL,
	}
}

func (c *planResolverCache) GetSubscription(ownerID snowflake.ID) (*subscriptiondomain.Subscription, bool) {
	return c.subscriptions.Get(ownerID)
}

func (c *planResolverCache) SetSubscription(ownerID snowflake.ID, sub *subscriptiondomain.Subscription) {
	if sub == nil || sub.ID == 0 {
		return
	}
	c.subscriptions.Set(ownerID, sub, c.subTTL)
}

func (c *planResolverCache) InvalidateSubscription(ownerID snowflake.ID) {
	c.subscriptions.Delete(ownerID)
}
