package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	allocationdomain "github.com/Tao119/eurekode-sub004/internal/allocation/domain"
	"github.com/Tao119/eurekode-sub004/internal/clock"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	"github.com/Tao119/eurekode-sub004/pkg/db"
	"github.com/Tao119/eurekode-sub004/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultRequestPageSize = 50

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) allocationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("allocation.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) ListRequests(ctx context.Context, in allocationdomain.ListRequestsInput) (allocationdomain.ListRequestsResponse, error) {
	actor := in.Actor
	if actor.UserID == 0 || actor.OrgID == 0 {
		return allocationdomain.ListRequestsResponse{}, allocationdomain.ErrInvalidActor
	}

	pageSize := in.PageSize
	if pageSize <= 0 || pageSize > defaultRequestPageSize {
		pageSize = defaultRequestPageSize
	}

	stmt := s.db.WithContext(ctx).
		Table("credit_allocation_requests AS r").
		Select("r.*, COALESCE(m.display_name, '') AS requester_name").
		Joins("LEFT JOIN organization_members m ON m.org_id = r.org_id AND m.user_id = r.requester_id").
		Where("r.org_id = ?", actor.OrgID)

	switch actor.Role {
	case actorcontext.RoleAdmin:
	case actorcontext.RoleMember:
		stmt = stmt.Where("r.requester_id = ?", actor.UserID)
	default:
		return allocationdomain.ListRequestsResponse{}, allocationdomain.ErrForbidden
	}

	if token := strings.TrimSpace(in.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return allocationdomain.ListRequestsResponse{}, allocationdomain.ErrInvalidActor
		}
		stmt = stmt.Where("(r.created_at, r.id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []*allocationdomain.RequestView
	if err := stmt.
		Order("r.created_at DESC").
		Order("r.id DESC").
		Limit(int(pageSize) + 1).
		Scan(&rows).Error; err != nil {
		return allocationdomain.ListRequestsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, pageSize, func(row *allocationdomain.RequestView) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(rows) > int(pageSize) {
		rows = rows[:pageSize]
	}

	records := make([]allocationdomain.RequestView, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		records = append(records, *row)
	}

	resp := allocationdomain.ListRequestsResponse{Requests: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) CreateRequest(ctx context.Context, in allocationdomain.CreateRequestInput) (*allocationdomain.CreditAllocationRequest, error) {
	actor := in.Actor
	if actor.UserID == 0 || actor.OrgID == 0 {
		return nil, allocationdomain.ErrInvalidActor
	}
	if actor.Role != actorcontext.RoleMember {
		return nil, allocationdomain.ErrForbidden
	}
	if in.RequestedPoints <= 0 {
		return nil, allocationdomain.ErrInvalidPoints
	}

	var pending int64
	if err := s.db.WithContext(ctx).
		Model(&allocationdomain.CreditAllocationRequest{}).
		Where("org_id = ? AND requester_id = ? AND status = ?",
			actor.OrgID, actor.UserID, allocationdomain.RequestStatusPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, allocationdomain.ErrPendingRequest
	}

	now := s.clock.Now()
	record := &allocationdomain.CreditAllocationRequest{
		ID:              s.genID.Generate(),
		OrgID:           actor.OrgID,
		RequesterID:     actor.UserID,
		RequestedPoints: in.RequestedPoints,
		Reason:          strings.TrimSpace(in.Reason),
		Status:          allocationdomain.RequestStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		// The partial unique index on pending requests backstops the
		// pre-check under concurrent submissions.
		if db.IsDuplicateKeyErr(err) {
			return nil, allocationdomain.ErrPendingRequest
		}
		return nil, err
	}
	return record, nil
}

// ReviewRequest resolves a pending request. Approval upserts the period
// allocation and flips the request inside one transaction; a partial
// failure leaves both rows untouched. Terminal states never match the
// pending guard again, which makes a second review fail with not-found.
func (s *Service) ReviewRequest(ctx context.Context, in allocationdomain.ReviewRequestInput) (*allocationdomain.CreditAllocationRequest, error) {
	actor := in.Actor
	if actor.UserID == 0 || actor.OrgID == 0 {
		return nil, allocationdomain.ErrInvalidActor
	}
	if actor.Role != actorcontext.RoleAdmin {
		return nil, allocationdomain.ErrForbidden
	}
	if in.Action != allocationdomain.ReviewActionApprove && in.Action != allocationdomain.ReviewActionReject {
		return nil, allocationdomain.ErrInvalidAction
	}

	now := s.clock.Now()
	periodStart, _ := creditdomain.PeriodWindow(now)
	reviewerID := actor.UserID

	var reviewed *allocationdomain.CreditAllocationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request allocationdomain.CreditAllocationRequest
		if err := tx.WithContext(ctx).
			Where("id = ? AND org_id = ? AND status = ?",
				in.RequestID, actor.OrgID, allocationdomain.RequestStatusPending).
			First(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return allocationdomain.ErrRequestNotFound
			}
			return err
		}

		fields := map[string]any{
			"reviewer_id": reviewerID,
			"reviewed_at": now,
			"updated_at":  now,
		}

		if in.Action == allocationdomain.ReviewActionApprove {
			allocation, err := s.upsertAllocation(ctx, tx, request.OrgID, request.RequesterID, periodStart, request.RequestedPoints, false, "", now)
			if err != nil {
				return err
			}
			fields["status"] = allocationdomain.RequestStatusApproved
			fields["allocation_id"] = allocation.ID
		} else {
			fields["status"] = allocationdomain.RequestStatusRejected
			fields["rejection_reason"] = strings.TrimSpace(in.RejectionReason)
		}

		// Guard on pending so a concurrent review of the same request
		// settles exactly once.
		result := tx.WithContext(ctx).
			Model(&allocationdomain.CreditAllocationRequest{}).
			Where("id = ? AND status = ?", request.ID, allocationdomain.RequestStatusPending).
			Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return allocationdomain.ErrRequestNotFound
		}

		if err := tx.WithContext(ctx).Where("id = ?", request.ID).First(&request).Error; err != nil {
			return err
		}
		reviewed = &request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}

func (s *Service) AllocateDirect(ctx context.Context, in allocationdomain.AllocateDirectInput) (*allocationdomain.CreditAllocation, error) {
	actor := in.Actor
	if actor.UserID == 0 || actor.OrgID == 0 {
		return nil, allocationdomain.ErrInvalidActor
	}
	if actor.Role != actorcontext.RoleAdmin {
		return nil, allocationdomain.ErrForbidden
	}
	if in.UserID == 0 {
		return nil, allocationdomain.ErrMemberNotFound
	}
	if in.Points < 0 {
		return nil, allocationdomain.ErrInvalidPoints
	}

	var membership int64
	if err := s.db.WithContext(ctx).
		Table("organization_members").
		Where("org_id = ? AND user_id = ?", actor.OrgID, in.UserID).
		Count(&membership).Error; err != nil {
		return nil, err
	}
	if membership == 0 {
		return nil, allocationdomain.ErrMemberNotFound
	}

	now := s.clock.Now()
	periodStart, _ := creditdomain.PeriodWindow(now)

	var allocation *allocationdomain.CreditAllocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		allocation, txErr = s.upsertAllocation(ctx, tx, actor.OrgID, in.UserID, periodStart, in.Points, true, strings.TrimSpace(in.Note), now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return allocation, nil
}

// upsertAllocation is the insert-or-increment primitive behind both the
// approval flow (increment) and direct top-ups (absolute set).
func (s *Service) upsertAllocation(ctx context.Context, tx *gorm.DB, orgID, userID snowflake.ID, periodStart time.Time, points int64, absolute bool, note string, now time.Time) (*allocationdomain.CreditAllocation, error) {
	record := &allocationdomain.CreditAllocation{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		UserID:          userID,
		PeriodStart:     periodStart,
		AllocatedPoints: points,
		UsedPoints:      0,
		Note:            note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	assignments := map[string]any{
		"allocated_points": gorm.Expr("allocated_points + ?", points),
		"updated_at":       now,
	}
	if absolute {
		assignments["allocated_points"] = points
		assignments["note"] = note
	}

	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "user_id"}, {Name: "period_start"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(record).Error; err != nil {
		return nil, err
	}

	var stored allocationdomain.CreditAllocation
	if err := tx.WithContext(ctx).
		Where("org_id = ? AND user_id = ? AND period_start = ?", orgID, userID, periodStart).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *Service) ListAllocations(ctx context.Context, in allocationdomain.ListAllocationsInput) ([]allocationdomain.AllocationView, error) {
	actor := in.Actor
	if actor.UserID == 0 || actor.OrgID == 0 {
		return nil, allocationdomain.ErrInvalidActor
	}

	periodStart, _ := creditdomain.PeriodWindow(s.clock.Now())
	stmt := s.db.WithContext(ctx).
		Table("credit_allocations AS a").
		Select("a.*, COALESCE(m.display_name, '') AS member_name").
		Joins("LEFT JOIN organization_members m ON m.org_id = a.org_id AND m.user_id = a.user_id").
		Where("a.org_id = ? AND a.period_start = ?", actor.OrgID, periodStart)

	switch actor.Role {
	case actorcontext.RoleAdmin:
	case actorcontext.RoleMember:
		stmt = stmt.Where("a.user_id = ?", actor.UserID)
	default:
		return nil, allocationdomain.ErrForbidden
	}

	var rows []allocationdomain.AllocationView
	if err := stmt.Order("a.created_at DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) AllocationFor(ctx context.Context, orgID, userID snowflake.ID, at time.Time) (*allocationdomain.CreditAllocation, error) {
	periodStart, _ := creditdomain.PeriodWindow(at)
	var record allocationdomain.CreditAllocation
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ? AND period_start = ?", orgID, userID, periodStart).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
