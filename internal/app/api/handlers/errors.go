package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/renewal/pkg/logctx"
	"github.com/fatflowers/renewal/pkg/response"
	"github.com/fatflowers/renewal/pkg/types"
)

// CancelLockedData is the payload returned with a cancel_locked error.
type CancelLockedData struct {
	LockedUntil int64                  `json:"locked_until"`
	Reason      types.CancelLockReason `json:"reason"`
}

// writeError maps service errors onto the response envelope.
func writeError(c *gin.Context, base *zap.SugaredLogger, err error) {
	var locked *types.CancelLockedError
	switch {
	case errors.As(err, &locked):
		c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeCancelLocked, &CancelLockedData{LockedUntil: locked.LockedUntil, Reason: locked.Reason}))
	case errors.Is(err, types.ErrDowngradeNotAllowed):
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeDowngradeNotAllowed, err.Error()))
	case errors.Is(err, types.ErrNoActiveSubscription):
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNoActiveSubscription, err.Error()))
	case errors.Is(err, types.ErrSubscriptionNotFound):
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeSubscriptionNotFound, err.Error()))
	case errors.Is(err, types.ErrInvalidArgument):
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
	case errors.Is(err, types.ErrWalletBusy):
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeConflict, err.Error()))
	default:
		logctx.FromGin(c, base).Errorw("request_failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}
