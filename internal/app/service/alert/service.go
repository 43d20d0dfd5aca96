package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/logctx"
	"github.com/fatflowers/renewal/pkg/metrics"
	"github.com/fatflowers/renewal/pkg/tool"
	types "github.com/fatflowers/renewal/pkg/types"
)

// SignatureHeader carries "sha256=<hex hmac of body>" when a webhook secret is set.
const SignatureHeader = "X-Signature"

// Alert is the webhook body for a plan change that needs operator attention.
type Alert struct {
	Type          types.AlertType `json:"type"`
	WalletAddress string          `json:"walletAddress"`
	Attempt       int             `json:"attempt"`
	EffectiveAt   int64           `json:"effectiveAt"`
	ToPlanType    types.PlanType  `json:"toPlanType"`
	Error         string          `json:"error"`
	GiveUp        bool            `json:"giveUp"`
	TS            int64           `json:"ts"`
}

// Notifier delivers alerts without affecting the caller's state.
type Notifier interface {
	Notify(ctx context.Context, a *Alert)
}

type Service struct {
	cfg     config.AlertConfig
	db      *gorm.DB
	client  *http.Client
	log     *zap.SugaredLogger
	metrics *metrics.Business
	wg      sync.WaitGroup
}

func New(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{
		cfg:     cfg.Alert,
		db:      db,
		client:  &http.Client{Timeout: cfg.Alert.Timeout},
		log:     log,
		metrics: m,
	}
}

// SetClient sets a custom HTTP client (useful for testing).
func (s *Service) SetClient(c *http.Client) { s.client = c }

// Notify sends a in the background. Errors are logged only.
func (s *Service) Notify(ctx context.Context, a *Alert) {
	if a == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
		}
		if err := s.Send(ctx, a); err != nil {
			logctx.FromCtx(ctx, s.log).Warnw("alert_send_failed", "type", a.Type, "wallet_address", a.WalletAddress, "attempt", a.Attempt, "err", err)
		}
	}()
}

// Wait blocks until in-flight alerts finish or ctx expires.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes the audit entry, then posts the webhook if one is configured.
func (s *Service) Send(ctx context.Context, a *Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	entry := &models.AlertLog{
		ID:            tool.GenerateUUIDV7(),
		Type:          a.Type,
		WalletAddress: a.WalletAddress,
		Attempt:       a.Attempt,
		GiveUp:        a.GiveUp,
		TraceID:       logctx.TraceID(ctx),
		Payload:       body,
		Status:        models.AlertLogStatusRecorded,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("save alert log: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Warnw("plan_change_alert",
		"type", a.Type, "wallet_address", a.WalletAddress, "attempt", a.Attempt, "give_up", a.GiveUp, "error", a.Error)

	if s.cfg.WebhookURL == "" {
		s.metrics.Alert(string(a.Type), string(models.AlertLogStatusRecorded))
		return nil
	}

	deliverErr := s.post(ctx, body)
	status := lo.Ternary(deliverErr == nil, models.AlertLogStatusDelivered, models.AlertLogStatusDeliverError)
	updates := map[string]any{"status": status}
	if deliverErr != nil {
		updates["delivery_error"] = deliverErr.Error()
	}
	if err := s.db.WithContext(ctx).Model(entry).Updates(updates).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to update alert log: %v", err)
	}
	s.metrics.Alert(string(a.Type), string(status))
	return deliverErr
}

func (s *Service) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.WebhookSecret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(s.cfg.WebhookSecret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook returned status %d", resp.StatusCode)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// NewAlert builds the alert payload for a failed or abandoned schedule attempt.
func NewAlert(wallet string, attempt int, giveUp bool, effectiveAt int64, to types.PlanType, errMsg string, now time.Time) *Alert {
	return &Alert{
		Type:          lo.Ternary(giveUp, types.AlertTypeGiveUp, types.AlertTypeScheduleRetry),
		WalletAddress: wallet,
		Attempt:       attempt,
		EffectiveAt:   effectiveAt,
		ToPlanType:    to,
		Error:         errMsg,
		GiveUp:        giveUp,
		TS:            now.Unix(),
	}
}
