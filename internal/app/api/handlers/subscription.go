package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/internal/app/service/planchange"
	subsvc "github.com/fatflowers/renewal/internal/app/service/subscription"
	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/response"
)

// Registry is the subscription surface used by client handlers.
type Registry interface {
	CreateOrUpdate(ctx context.Context, req *subsvc.CreateOrUpdateRequest) (*models.Subscription, error)
	Cancel(ctx context.Context, wallet string) (*models.Subscription, error)
	GetStatus(ctx context.Context, wallet string) (*subsvc.Status, error)
}

type Scheduler interface {
	ScheduleChange(ctx context.Context, req *planchange.ScheduleChangeRequest) (*changestate.PlanChangeRequest, error)
}

type CancelRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// @Summary      Create or update subscription
// @Description  Creates the wallet's subscription or overwrites the active plan. Clears any pending plan change.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body subscription.CreateOrUpdateRequest true "Plan terms"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscription/create_or_update [post]
func ApiCreateOrUpdate(reg Registry, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.CreateOrUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := reg.CreateOrUpdate(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Cancel subscription
// @Description  Deactivates the wallet's subscription. Rejected with cancel_locked while an upgrade is pending.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body handlers.CancelRequest true "Wallet"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscription/cancel [post]
func ApiCancel(reg Registry, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sub, err := reg.Cancel(c.Request.Context(), req.WalletAddress)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Schedule plan change
// @Description  Records an upgrade taking effect at the next renewal (or effective_at) and locks cancellation.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body planchange.ScheduleChangeRequest true "Target plan"
// @Success      200  {object}  handlers.RespPlanChange
// @Router       /api/v1/subscription/schedule_change [post]
func ApiScheduleChange(sched Scheduler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req planchange.ScheduleChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		change, err := sched.ScheduleChange(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(change))
	}
}

type statusQuery struct {
	WalletAddress string `form:"wallet_address" binding:"required"`
}

// @Summary      Subscription status
// @Description  Returns the active subscription, the pending plan change and the cancel-lock horizon.
// @Tags         Subscription
// @Produce      json
// @Param        wallet_address query string true "Wallet"
// @Success      200  {object}  handlers.RespStatus
// @Router       /api/v1/subscription/status [get]
func ApiStatus(reg Registry, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q statusQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		status, err := reg.GetStatus(c.Request.Context(), q.WalletAddress)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(status))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, reg Registry, sched Scheduler, log *zap.SugaredLogger) {
	r.POST("/create_or_update", ApiCreateOrUpdate(reg, log))
	r.POST("/cancel", ApiCancel(reg, log))
	r.POST("/schedule_change", ApiScheduleChange(sched, log))
	r.GET("/status", ApiStatus(reg, log))
}
