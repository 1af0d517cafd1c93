package server

import (
	"net/http"
	"strings"

	allocationdomain "github.com/Tao119/eurekode-sub004/internal/allocation/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListAllocations(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	allocations, err := s.allocationSvc.ListAllocations(c.Request.Context(), allocationdomain.ListAllocationsInput{
		Actor: actor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"allocations": allocations})
}

type allocateDirectRequest struct {
	MemberID string `json:"member_id"`
	Points   int64  `json:"points"`
	Note     string `json:"note"`
}

func (s *Server) AllocateDirect(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req allocateDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	memberID, err := snowflake.ParseString(strings.TrimSpace(req.MemberID))
	if err != nil {
		AbortWithError(c, newValidationError("member_id", "invalid_member_id", "invalid value"))
		return
	}

	allocation, err := s.allocationSvc.AllocateDirect(c.Request.Context(), allocationdomain.AllocateDirectInput{
		Actor:  actor,
		UserID: memberID,
		Points: req.Points,
		Note:   req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, allocation)
}

func (s *Server) ListAllocationRequests(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.allocationSvc.ListRequests(c.Request.Context(), allocationdomain.ListRequestsInput{
		Actor:     actor,
		PageToken: c.Query("page_token"),
		PageSize:  parsePageSize(c.Query("page_size")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type createAllocationRequestBody struct {
	RequestedPoints int64  `json:"requested_points"`
	Reason          string `json:"reason"`
}

func (s *Server) CreateAllocationRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createAllocationRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	created, err := s.allocationSvc.CreateRequest(c.Request.Context(), allocationdomain.CreateRequestInput{
		Actor:           actor,
		RequestedPoints: req.RequestedPoints,
		Reason:          req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

type reviewAllocationRequestBody struct {
	RequestID       string `json:"request_id"`
	Action          string `json:"action"`
	RejectionReason string `json:"rejection_reason"`
}

func (s *Server) ReviewAllocationRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req reviewAllocationRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	requestID, err := snowflake.ParseString(strings.TrimSpace(req.RequestID))
	if err != nil {
		AbortWithError(c, newValidationError("request_id", "invalid_request_id", "invalid value"))
		return
	}

	reviewed, err := s.allocationSvc.ReviewRequest(c.Request.Context(), allocationdomain.ReviewRequestInput{
		Actor:           actor,
		RequestID:       requestID,
		Action:          allocationdomain.ReviewAction(req.Action),
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, reviewed)
}
