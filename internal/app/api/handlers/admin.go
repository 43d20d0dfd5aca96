package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/renewal/internal/app/service/paymentlog"
	"github.com/fatflowers/renewal/pkg/response"
)

// PaymentLogs scans the payment audit trail.
type PaymentLogs interface {
	Scan(ctx context.Context, req *paymentlog.ScanRequest) (*paymentlog.ScanResponse, error)
}

type planChangesQuery struct {
	Cursor uint64 `form:"cursor"`
	Limit  int    `form:"limit"`
}

// @Summary      Scan payment logs (Admin)
// @Description  Paginated, filterable view of the append-only payment log.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body paymentlog.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespPaymentLogs
// @Router       /api/v1/admin/payment_logs [post]
func ApiScanPaymentLogs(logs PaymentLogs, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req paymentlog.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := logs.Scan(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List plan changes (Admin)
// @Description  Every pending plan change including confirmed and given-up requests.
// @Tags         Admin
// @Produce      json
// @Param        cursor query int false "Scan cursor"
// @Param        limit query int false "Batch size"
// @Success      200  {object}  handlers.RespPlanChangePage
// @Router       /api/v1/admin/plan_changes [get]
func ApiListPlanChanges(f Feed, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q planChangesQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		page, err := f.DuePlanChanges(c.Request.Context(), q.Cursor, q.Limit, false)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(page))
	}
}

func RegisterAdminRoutes(r gin.IRouter, logs PaymentLogs, f Feed, log *zap.SugaredLogger) {
	r.POST("/payment_logs", ApiScanPaymentLogs(logs, log))
	r.GET("/plan_changes", ApiListPlanChanges(f, log))
}
