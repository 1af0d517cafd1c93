package service

import (
	"context"
	"testing"
	"time"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	allocationdomain "github.com/Tao119/eurekode-sub004/internal/allocation/domain"
	"github.com/Tao119/eurekode-sub004/internal/clock"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	orgdomain "github.com/Tao119/eurekode-sub004/internal/organization/domain"
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
		&orgdomain.OrganizationMember{},
		&allocationdomain.CreditAllocation{},
		&allocationdomain.CreditAllocationRequest{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
	}).(*Service)
}

func seedMember(t *testing.T, db *gorm.DB, orgID, userID snowflake.ID, name string) {
	t.Helper()
	err := db.Create(&orgdomain.OrganizationMember{
		ID:          snowflake.ID(userID + 100000),
		OrgID:       orgID,
		UserID:      userID,
		Role:        "member",
		DisplayName: name,
	}).Error
	if err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
}

func TestCreateRequestRejectsSecondPending(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	member := actorcontext.Actor{UserID: snowflake.ID(7), Role: actorcontext.RoleMember, OrgID: snowflake.ID(99)}

	first, err := svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
		Actor:           member,
		RequestedPoints: 100,
		Reason:          "sprint work",
	})
	assert.NoError(t, err)
	assert.Equal(t, allocationdomain.RequestStatusPending, first.Status)

	_, err = svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
		Actor:           member,
		RequestedPoints: 50,
	})
	assert.ErrorIs(t, err, allocationdomain.ErrPendingRequest)
}

func TestCreateRequestValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewFakeClock(time.Now()))

	member := actorcontext.Actor{UserID: snowflake.ID(7), Role: actorcontext.RoleMember, OrgID: snowflake.ID(99)}
	_, err := svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
		Actor:           member,
		RequestedPoints: 0,
	})
	assert.ErrorIs(t, err, allocationdomain.ErrInvalidPoints)

	admin := actorcontext.Actor{UserID: snowflake.ID(8), Role: actorcontext.RoleAdmin, OrgID: snowflake.ID(99)}
	_, err = svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
		Actor:           admin,
		RequestedPoints: 10,
	})
	assert.ErrorIs(t, err, allocationdomain.ErrForbidden)
}

func TestApproveIncrementsAllocationOnce(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	orgID := snowflake.ID(99)
	member := actorcontext.Actor{UserID: snowflake.ID(7), Role: actorcontext.RoleMember, OrgID: orgID}
	admin := actorcontext.Actor{UserID: snowflake.ID(8), Role: actorcontext.RoleAdmin, OrgID: orgID}

	request, err := svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
		Actor:           member,
		RequestedPoints: 120,
	})
	assert.NoError(t, err)

	approved, err := svc.ReviewRequest(context.Background(), allocationdomain.ReviewRequestInput{
		Actor:     admin,
		RequestID: request.ID,
		Action:    allocationdomain.ReviewActionApprove,
	})
	assert.NoError(t, err)
	assert.Equal(t, allocationdomain.RequestStatusApproved, approved.Status)
	assert.NotNil(t, approved.AllocationID)
	assert.NotNil(t, approved.ReviewerID)
	assert.Equal(t, admin.UserID, *approved.ReviewerID)

	periodStart, _ := creditdomain.PeriodWindow(now)
	var allocation allocationdomain.CreditAllocation
	assert.NoError(t, db.Where("org_id = ? AND user_id = ? AND period_start = ?",
		orgID, member.UserID, periodStart).First(&allocation).Error)
	assert.Equal(t, int64(120), allocation.AllocatedPoints)
	assert.Equal(t, int64(0), allocation.UsedPoints)

	// Reviewing a settled request again mutates nothing.
	_, err = svc.ReviewRequest(context.Background(), allocationdomain.ReviewRequestInput{
		Actor:     admin,
		RequestID: request.ID,
		Action:    allocationdomain.ReviewActionApprove,
	})
	assert.ErrorIs(t, err, allocationdomain.ErrRequestNotFound)

	assert.NoError(t, db.Where("id = ?", allocation.ID).First(&allocation).Error)
	assert.Equal(t, int64(120), allocation.AllocatedPoints)
}

func TestApproveSecondRequestIncrementsExisting(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	orgID := snowflake.ID(99)
	member := actorcontext.Actor{UserID: snowflake.ID(7), Role: actorcontext.RoleMember, OrgID: orgID}
	admin := actorcontext.Actor{UserID: snowflake.ID(8), Role: actorcontext.RoleAdmin, OrgID: orgID}

	for _, points := range []int64{100, 40} {
		request, err := svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
			Actor:           member,
			RequestedPoints: points,
		})
		assert.NoError(t, err)
		_, err = svc.ReviewRequest(context.Background(), allocationdomain.ReviewRequestInput{
			Actor:     admin,
			RequestID: request.ID,
			Action:    allocationdomain.ReviewActionApprove,
		})
		assert.NoError(t, err)
	}

	periodStart, _ := creditdomain.PeriodWindow(now)
	var allocation allocationdomain.CreditAllocation
	assert.NoError(t, db.Where("org_id = ? AND user_id = ? AND period_start = ?",
		orgID, member.UserID, periodStart).First(&allocation).Error)
	assert.Equal(t, int64(140), allocation.AllocatedPoints)
}

func TestRejectLeavesLedgerUntouched(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	orgID := snowflake.ID(99)
	member := actorcontext.Actor{UserID: snowflake.ID(7), Role: actorcontext.RoleMember, OrgID: orgID}
	admin := actorcontext.Actor{UserID: snowflake.ID(8), Role: actorcontext.RoleAdmin, OrgID: orgID}

	request, err := svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
		Actor:           member,
		RequestedPoints: 80,
	})
	assert.NoError(t, err)

	rejected, err := svc.ReviewRequest(context.Background(), allocationdomain.ReviewRequestInput{
		Actor:           admin,
		RequestID:       request.ID,
		Action:          allocationdomain.ReviewActionReject,
		RejectionReason: "budget frozen",
	})
	assert.NoError(t, err)
	assert.Equal(t, allocationdomain.RequestStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "budget frozen", *rejected.RejectionReason)

	var allocations int64
	assert.NoError(t, db.Model(&allocationdomain.CreditAllocation{}).Count(&allocations).Error)
	assert.Equal(t, int64(0), allocations)
}

func TestReviewRequiresAdminInSameOrg(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	orgID := snowflake.ID(99)
	member := actorcontext.Actor{UserID: snowflake.ID(7), Role: actorcontext.RoleMember, OrgID: orgID}
	request, err := svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
		Actor:           member,
		RequestedPoints: 80,
	})
	assert.NoError(t, err)

	_, err = svc.ReviewRequest(context.Background(), allocationdomain.ReviewRequestInput{
		Actor:     member,
		RequestID: request.ID,
		Action:    allocationdomain.ReviewActionApprove,
	})
	assert.ErrorIs(t, err, allocationdomain.ErrForbidden)

	otherAdmin := actorcontext.Actor{UserID: snowflake.ID(9), Role: actorcontext.RoleAdmin, OrgID: snowflake.ID(100)}
	_, err = svc.ReviewRequest(context.Background(), allocationdomain.ReviewRequestInput{
		Actor:     otherAdmin,
		RequestID: request.ID,
		Action:    allocationdomain.ReviewActionApprove,
	})
	assert.ErrorIs(t, err, allocationdomain.ErrRequestNotFound)
}

func TestAllocateDirectSetsAbsoluteValue(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	orgID := snowflake.ID(99)
	memberID := snowflake.ID(7)
	admin := actorcontext.Actor{UserID: snowflake.ID(8), Role: actorcontext.RoleAdmin, OrgID: orgID}
	seedMember(t, db, orgID, memberID, "Hana")

	allocation, err := svc.AllocateDirect(context.Background(), allocationdomain.AllocateDirectInput{
		Actor:  admin,
		UserID: memberID,
		Points: 500,
		Note:   "project kickoff",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(500), allocation.AllocatedPoints)

	// A second direct set replaces, never accumulates.
	allocation, err = svc.AllocateDirect(context.Background(), allocationdomain.AllocateDirectInput{
		Actor:  admin,
		UserID: memberID,
		Points: 200,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(200), allocation.AllocatedPoints)

	var count int64
	assert.NoError(t, db.Model(&allocationdomain.CreditAllocation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAllocateDirectUnknownMember(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewFakeClock(time.Now()))

	admin := actorcontext.Actor{UserID: snowflake.ID(8), Role: actorcontext.RoleAdmin, OrgID: snowflake.ID(99)}
	_, err := svc.AllocateDirect(context.Background(), allocationdomain.AllocateDirectInput{
		Actor:  admin,
		UserID: snowflake.ID(12345),
		Points: 100,
	})
	assert.ErrorIs(t, err, allocationdomain.ErrMemberNotFound)
}

func TestListRequestsScopedByRole(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	orgID := snowflake.ID(99)
	memberA := actorcontext.Actor{UserID: snowflake.ID(7), Role: actorcontext.RoleMember, OrgID: orgID}
	memberB := actorcontext.Actor{UserID: snowflake.ID(9), Role: actorcontext.RoleMember, OrgID: orgID}
	admin := actorcontext.Actor{UserID: snowflake.ID(8), Role: actorcontext.RoleAdmin, OrgID: orgID}
	seedMember(t, db, orgID, memberA.UserID, "Hana")
	seedMember(t, db, orgID, memberB.UserID, "Kenji")

	for _, m := range []actorcontext.Actor{memberA, memberB} {
		_, err := svc.CreateRequest(context.Background(), allocationdomain.CreateRequestInput{
			Actor:           m,
			RequestedPoints: 10,
		})
		assert.NoError(t, err)
	}

	adminList, err := svc.ListRequests(context.Background(), allocationdomain.ListRequestsInput{Actor: admin})
	assert.NoError(t, err)
	assert.Len(t, adminList.Requests, 2)
	names := []string{adminList.Requests[0].RequesterName, adminList.Requests[1].RequesterName}
	assert.ElementsMatch(t, []string{"Hana", "Kenji"}, names)

	memberList, err := svc.ListRequests(context.Background(), allocationdomain.ListRequestsInput{Actor: memberA})
	assert.NoError(t, err)
	assert.Len(t, memberList.Requests, 1)
	assert.Equal(t, memberA.UserID, memberList.Requests[0].RequesterID)
}
