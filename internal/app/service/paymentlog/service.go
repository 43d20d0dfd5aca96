package paymentlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/logctx"
	"github.com/fatflowers/renewal/pkg/tool"
	types "github.com/fatflowers/renewal/pkg/types"
)

var (
	filterableFields = []string{"subscription_id", "wallet_address", "success", "tx_ref", "plan_type", "period_start", "created_at"}
	sortableFields   = []string{"created_at", "period_start"}
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Append inserts entry inside tx. Entries are never updated afterwards.
func Append(ctx context.Context, tx *gorm.DB, entry *models.PaymentLog) error {
	if entry == nil {
		return errors.New("nil payment log")
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if entry.Extra == nil {
		entry.Extra = datatypes.JSONMap{}
	}
	if tid := logctx.TraceID(ctx); tid != "" {
		entry.Extra["trace_id"] = tid
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save payment log: %w", err)
	}
	return nil
}

// HasSuccessfulTxRef reports whether txRef was already settled for the subscription.
func HasSuccessfulTxRef(ctx context.Context, tx *gorm.DB, subscriptionID, txRef string) (bool, error) {
	if txRef == "" {
		return false, nil
	}
	var n int64
	err := tx.WithContext(ctx).Model(&models.PaymentLog{}).
		Where("subscription_id = ? AND tx_ref = ? AND success = ?", subscriptionID, txRef, true).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up payment log: %w", err)
	}
	return n > 0, nil
}

// HasSuccessfulPeriod reports whether the billing period starting at periodStart
// was already settled for the subscription.
func HasSuccessfulPeriod(ctx context.Context, tx *gorm.DB, subscriptionID string, periodStart int64) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&models.PaymentLog{}).
		Where("subscription_id = ? AND period_start = ? AND success = ?", subscriptionID, periodStart, true).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up payment log: %w", err)
	}
	return n > 0, nil
}

// Scan request/response.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.PaymentLog `json:"items"`
	Total int64                `json:"total"`
}

// Scan implements paginated admin listing with filters.
func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, types.InvalidArgument("nil request")
	}
	if err := types.ValidateFilters(req.Filters, filterableFields); err != nil {
		return nil, err
	}
	if req.SortBy != "" && !lo.Contains(sortableFields, req.SortBy) {
		return nil, types.InvalidArgument("sort on field %q is not allowed", req.SortBy)
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.PaymentLog{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd{Filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payment logs: %w", err)
	}

	var rows []*models.PaymentLog
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"},
		{Column: clause.Column{Name: "id"}, Desc: req.SortOrder != "asc"},
	}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment logs: %w", err)
	}

	return &ScanResponse{Items: rows, Total: total}, nil
}
