package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/renewal/internal/app/service/changestate"
	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/logctx"
	"github.com/fatflowers/renewal/pkg/metrics"
)

const (
	// maxGatedPages bounds how many database pages one gated call may read when
	// many due wallets are held back.
	maxGatedPages = 20
	// maxScanRounds bounds the SCAN calls made to fill one plan change page.
	maxScanRounds = 50
)

// Service computes the work lists polled by the executor.
type Service struct {
	cfg     config.FeedConfig
	db      *gorm.DB
	state   changestate.Store
	log     *zap.SugaredLogger
	metrics *metrics.Business
	now     func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, state changestate.Store, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{cfg: cfg.Feed, db: db, state: state, log: log, metrics: m, now: time.Now}
}

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// PlanChangePage is one page of the plan change feed. A NextCursor of 0 means the
// scan is complete. Items may slightly exceed the requested limit.
type PlanChangePage struct {
	Items      []*changestate.PlanChangeRequest `json:"items"`
	NextCursor uint64                           `json:"next_cursor"`
}

// DuePayments returns active subscriptions due at now, oldest first.
func (s *Service) DuePayments(ctx context.Context, limit int) ([]*models.Subscription, error) {
	defer s.metrics.ObserveProcess("feed", "due_payments", time.Now())
	rows, err := s.duePage(ctx, s.now(), nil, s.cfg.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DuePaymentsGated is DuePayments without wallets whose pending upgrade is overdue
// but not yet confirmed or abandoned.
func (s *Service) DuePaymentsGated(ctx context.Context, limit int) ([]*models.Subscription, error) {
	defer s.metrics.ObserveProcess("feed", "due_payments_gated", time.Now())
	limit = s.cfg.ClampLimit(limit)
	now := s.now()

	out := make([]*models.Subscription, 0, limit)
	var after *models.Subscription
	held := 0
	for page := 0; page < maxGatedPages && len(out) < limit; page++ {
		rows, err := s.duePage(ctx, now, after, limit)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		wallets := make([]string, len(rows))
		for i, r := range rows {
			wallets[i] = r.WalletAddress
		}
		changes, err := s.state.GetPlanChanges(ctx, wallets)
		if err != nil {
			return nil, err
		}

		for _, r := range rows {
			if c, ok := changes[r.WalletAddress]; ok && c.BlocksBilling(now) {
				held++
				continue
			}
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
		if len(rows) < limit {
			break
		}
		after = rows[len(rows)-1]
	}

	if held > 0 {
		logctx.FromCtx(ctx, s.log).Infow("due_payments_held", "held", held, "returned", len(out))
	}
	return out, nil
}

// duePage reads one keyset page ordered by (next_payment_at, id), starting after after.
func (s *Service) duePage(ctx context.Context, now time.Time, after *models.Subscription, limit int) ([]*models.Subscription, error) {
	q := s.db.WithContext(ctx).
		Where("is_active = ? AND next_payment_at <= ?", true, now.Unix())
	if after != nil {
		q = q.Where("(next_payment_at > ? OR (next_payment_at = ? AND id > ?))", after.NextPaymentAt, after.NextPaymentAt, after.ID)
	}
	var rows []*models.Subscription
	if err := q.Order("next_payment_at ASC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	return rows, nil
}

// DuePlanChanges pages through stored plan changes. With onlyUnscheduled it
// returns requests awaiting a schedule attempt at now; otherwise every stored
// request, including confirmed and given-up ones.
func (s *Service) DuePlanChanges(ctx context.Context, cursor uint64, limit int, onlyUnscheduled bool) (*PlanChangePage, error) {
	defer s.metrics.ObserveProcess("feed", "due_plan_changes", time.Now())
	limit = s.cfg.ClampLimit(limit)
	now := s.now()

	page := &PlanChangePage{Items: make([]*changestate.PlanChangeRequest, 0, limit)}
	for round := 0; round < maxScanRounds; round++ {
		batch, next, err := s.state.ScanPlanChanges(ctx, cursor, int64(limit))
		if err != nil {
			return nil, err
		}
		for _, r := range batch {
			if onlyUnscheduled && !r.DueForAttempt(now) {
				continue
			}
			page.Items = append(page.Items, r)
		}
		cursor = next
		if cursor == 0 || len(page.Items) >= limit {
			break
		}
	}
	page.NextCursor = cursor
	return page, nil
}
