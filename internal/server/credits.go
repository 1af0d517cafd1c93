package server

import (
	"net/http"

	"github.com/Tao119/eurekode-sub004/internal/gate"
	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/gin-gonic/gin"
)

type balanceResponse struct {
	Plan                     plandomain.Tier `json:"plan"`
	IsOrganization           bool            `json:"is_organization"`
	PlanPointsRemaining      int64           `json:"plan_points_remaining"`
	PurchasedPointsRemaining int64           `json:"purchased_points_remaining"`
	AllocatedPointsRemaining *int64          `json:"allocated_points_remaining,omitempty"`
	CanPurchaseCredits       bool            `json:"can_purchase_credits"`
	Decision                 gate.Decision   `json:"decision"`
}

func (s *Server) GetBalance(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	planCtx, err := s.creditSvc.GetRemaining(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := balanceResponse{
		Plan:                     planCtx.Plan.Tier,
		IsOrganization:           planCtx.IsOrganization,
		PlanPointsRemaining:      planCtx.PlanPointsRemaining,
		PurchasedPointsRemaining: planCtx.PurchasedPointsRemaining,
		CanPurchaseCredits:       planCtx.CanPurchaseCredits,
		Decision:                 gate.Evaluate(planCtx),
	}
	if planCtx.Member {
		allocated := planCtx.AllocatedPointsRemaining
		resp.AllocatedPointsRemaining = &allocated
	}

	c.JSON(http.StatusOK, resp)
}
