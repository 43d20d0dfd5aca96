package handlers

import (
	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/internal/app/service/feed"
	"github.com/fatflowers/renewal/internal/app/service/intake"
	"github.com/fatflowers/renewal/internal/app/service/paymentlog"
	subsvc "github.com/fatflowers/renewal/internal/app/service/subscription"
	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/response"
)

// Envelopes below exist for swagger only; handlers return response.APIResponse[T].

type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

type RespSubscriptions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Subscription    `json:"data"`
}

type RespStatus struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    subsvc.Status            `json:"data"`
}

type RespPlanChange struct {
	Code    response.APIResponseCode      `json:"code"`
	Message string                        `json:"message"`
	Data    changestate.PlanChangeRequest `json:"data"`
}

type RespPlanChangePage struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    feed.PlanChangePage      `json:"data"`
}

type RespScheduleOutcome struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    intake.ScheduleOutcome   `json:"data"`
}

type RespPaymentOutcome struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    intake.PaymentOutcome    `json:"data"`
}

type RespPaymentLogs struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    paymentlog.ScanResponse  `json:"data"`
}

// RespCancelLocked is returned with code 40003.
type RespCancelLocked struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    CancelLockedData         `json:"data"`
}
