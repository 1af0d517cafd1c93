package domain

import (
	"context"
	"errors"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	"github.com/Tao119/eurekode-sub004/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionReject  ReviewAction = "reject"
)

type CreateRequestInput struct {
	Actor           actorcontext.Actor
	RequestedPoints int64
	Reason          string
}

type ReviewRequestInput struct {
	Actor           actorcontext.Actor
	RequestID       snowflake.ID
	Action          ReviewAction
	RejectionReason string
}

type AllocateDirectInput struct {
	Actor  actorcontext.Actor
	UserID snowflake.ID
	Points int64
	Note   string
}

type ListRequestsInput struct {
	Actor     actorcontext.Actor
	PageToken string
	PageSize  int32
}

// RequestView joins a request with requester display info for admin lists.
type RequestView struct {
	CreditAllocationRequest `gorm:"embedded"`
	RequesterName           string `json:"requester_name"`
}

type ListRequestsResponse struct {
	pagination.PageInfo
	Requests []RequestView `json:"requests"`
}

type ListAllocationsInput struct {
	Actor actorcontext.Actor
}

type AllocationView struct {
	CreditAllocation `gorm:"embedded"`
	MemberName       string `json:"member_name"`
}

type Service interface {
	ListRequests(ctx context.Context, in ListRequestsInput) (ListRequestsResponse, error)
	CreateRequest(ctx context.Context, in CreateRequestInput) (*CreditAllocationRequest, error)
	ReviewRequest(ctx context.Context, in ReviewRequestInput) (*CreditAllocationRequest, error)
	AllocateDirect(ctx context.Context, in AllocateDirectInput) (*CreditAllocation, error)
	ListAllocations(ctx context.Context, in ListAllocationsInput) ([]AllocationView, error)
	// AllocationFor returns the member's allocation row for the period
	// containing at, or nil when none exists (zero delegated budget).
	AllocationFor(ctx context.Context, orgID, userID snowflake.ID, at time.Time) (*CreditAllocation, error)
}

var (
	ErrInvalidActor    = errors.New("invalid_actor")
	ErrInvalidPoints   = errors.New("invalid_points")
	ErrInvalidAction   = errors.New("invalid_action")
	ErrForbidden       = errors.New("forbidden")
	ErrRequestNotFound = errors.New("request_not_found")
	ErrMemberNotFound  = errors.New("member_not_found")
	ErrPendingRequest  = errors.New("pending_request_exists")
)
