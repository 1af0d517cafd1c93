package server

import (
	"net/http"

	checkoutdomain "github.com/Tao119/eurekode-sub004/internal/checkout/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListCheckoutPacks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packs": s.checkoutSvc.ListPacks(c.Request.Context())})
}

type createCheckoutRequest struct {
	PackID string `json:"pack_id"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	resp, err := s.checkoutSvc.CreateSession(c.Request.Context(), checkoutdomain.CreateSessionInput{
		Actor:  actor,
		PackID: req.PackID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) CompleteCheckoutSession(c *gin.Context) {
	session, err := s.checkoutSvc.CompleteSession(c.Request.Context(), c.Param("ref"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}
