package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/renewal/internal/app/service/feed"
	"github.com/fatflowers/renewal/internal/app/service/intake"
	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/response"
)

// Feed lists the work the executor should act on.
type Feed interface {
	DuePayments(ctx context.Context, limit int) ([]*models.Subscription, error)
	DuePaymentsGated(ctx context.Context, limit int) ([]*models.Subscription, error)
	DuePlanChanges(ctx context.Context, cursor uint64, limit int, onlyUnscheduled bool) (*feed.PlanChangePage, error)
}

// Intake accepts executor outcome reports.
type Intake interface {
	ReportScheduleOutcome(ctx context.Context, req *intake.ScheduleOutcomeRequest) (*intake.ScheduleOutcome, error)
	ReportPaymentOutcome(ctx context.Context, req *intake.PaymentOutcomeRequest) (*intake.PaymentOutcome, error)
}

type duePaymentsQuery struct {
	Limit int   `form:"limit"`
	Gated *bool `form:"gated"`
}

type duePlanChangesQuery struct {
	Cursor          uint64 `form:"cursor"`
	Limit           int    `form:"limit"`
	OnlyUnscheduled *bool  `form:"only_unscheduled"`
}

// @Summary      Due payments
// @Description  Active subscriptions due for charging, oldest first. Gated by default: wallets with an overdue unconfirmed upgrade are held back.
// @Tags         Executor
// @Produce      json
// @Param        limit query int false "Batch size"
// @Param        gated query bool false "Apply the plan change gate (default true)"
// @Success      200  {object}  handlers.RespSubscriptions
// @Router       /api/v1/executor/due_payments [get]
func ApiDuePayments(f Feed, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q duePaymentsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		var (
			subs []*models.Subscription
			err  error
		)
		if lo.FromPtrOr(q.Gated, true) {
			subs, err = f.DuePaymentsGated(c.Request.Context(), q.Limit)
		} else {
			subs, err = f.DuePayments(c.Request.Context(), q.Limit)
		}
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(subs))
	}
}

// @Summary      Due plan changes
// @Description  Pending plan changes whose next schedule attempt is due. Pass next_cursor back until it is 0.
// @Tags         Executor
// @Produce      json
// @Param        cursor query int false "Scan cursor"
// @Param        limit query int false "Batch size"
// @Param        only_unscheduled query bool false "Only requests awaiting an attempt (default true)"
// @Success      200  {object}  handlers.RespPlanChangePage
// @Router       /api/v1/executor/due_plan_changes [get]
func ApiDuePlanChanges(f Feed, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q duePlanChangesQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		page, err := f.DuePlanChanges(c.Request.Context(), q.Cursor, q.Limit, lo.FromPtrOr(q.OnlyUnscheduled, true))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(page))
	}
}

// @Summary      Report schedule outcome
// @Description  Idempotent. Success confirms the pending change; failure schedules a retry or gives up.
// @Tags         Executor
// @Accept       json
// @Produce      json
// @Param        request body intake.ScheduleOutcomeRequest true "Outcome"
// @Success      200  {object}  handlers.RespScheduleOutcome
// @Router       /api/v1/executor/report_schedule_outcome [post]
func ApiReportScheduleOutcome(in Intake, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req intake.ScheduleOutcomeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		out, err := in.ReportScheduleOutcome(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

// @Summary      Report payment outcome
// @Description  Idempotent per billing period. period_start is the next_payment_at read from the feed and is required on success. Success commits an effective confirmed plan change and advances the next payment; failure deactivates. Reports for another period are acknowledged as duplicate.
// @Tags         Executor
// @Accept       json
// @Produce      json
// @Param        request body intake.PaymentOutcomeRequest true "Outcome"
// @Success      200  {object}  handlers.RespPaymentOutcome
// @Router       /api/v1/executor/report_payment_outcome [post]
func ApiReportPaymentOutcome(in Intake, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req intake.PaymentOutcomeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		out, err := in.ReportPaymentOutcome(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

func RegisterExecutorRoutes(r gin.IRouter, f Feed, in Intake, log *zap.SugaredLogger) {
	r.GET("/due_payments", ApiDuePayments(f, log))
	r.GET("/due_plan_changes", ApiDuePlanChanges(f, log))
	r.POST("/report_schedule_outcome", ApiReportScheduleOutcome(in, log))
	r.POST("/report_payment_outcome", ApiReportPaymentOutcome(in, log))
}
