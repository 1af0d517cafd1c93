// Package domain contains persistence models for organization-delegated
// credit budgets and the member request workflow around them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CreditAllocation is an admin's delegated monthly point budget for one
// member, unique per (org, user, period).
type CreditAllocation struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrgID       snowflake.ID `gorm:"not null;index;uniqueIndex:ux_credit_allocations_org_user_period,priority:1"`
	UserID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_credit_allocations_org_user_period,priority:2"`
	PeriodStart time.Time    `gorm:"not null;uniqueIndex:ux_credit_allocations_org_user_period,priority:3"`

	AllocatedPoints int64  `gorm:"not null;default:0"`
	UsedPoints      int64  `gorm:"not null;default:0"`
	Note            string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditAllocation) TableName() string { return "credit_allocations" }

// RequestStatus represents the review states of an allocation request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// CreditAllocationRequest is a member's ask for delegated budget. At most
// one pending request may exist per requester.
type CreditAllocationRequest struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrgID       snowflake.ID `gorm:"not null;index"`
	RequesterID snowflake.ID `gorm:"not null;index"`

	RequestedPoints int64         `gorm:"not null"`
	Reason          string        `gorm:"type:text"`
	Status          RequestStatus `gorm:"type:text;not null;index"`

	ReviewerID      *snowflake.ID `gorm:""`
	ReviewedAt      *time.Time    `gorm:""`
	RejectionReason *string       `gorm:"type:text"`
	AllocationID    *snowflake.ID `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CreditAllocationRequest) TableName() string { return "credit_allocation_requests" }
