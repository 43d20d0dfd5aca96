package subscription

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/logctx"
	"github.com/fatflowers/renewal/pkg/tool"
	types "github.com/fatflowers/renewal/pkg/types"
)

// Data access helpers shared with the report intake, which runs its own transactions.

// FindActiveForUpdate loads the wallet's active row with a row lock, or nil.
func FindActiveForUpdate(ctx context.Context, tx *gorm.DB, wallet string) (*models.Subscription, error) {
	var sub models.Subscription
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_address = ? AND is_active = ?", wallet, true).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active subscription: %w", err)
	}
	return &sub, nil
}

// FindByID returns ErrSubscriptionNotFound for unknown or malformed ids.
func FindByID(ctx context.Context, db *gorm.DB, id string) (*models.Subscription, error) {
	return findByID(ctx, db, id)
}

// FindByIDForUpdate is FindByID with a row lock, for use inside a transaction.
func FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Subscription, error) {
	return findByID(ctx, tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func findByID(ctx context.Context, db *gorm.DB, id string) (*models.Subscription, error) {
	if !tool.IsUUID(id) {
		return nil, fmt.Errorf("%w: %s", types.ErrSubscriptionNotFound, id)
	}
	var sub models.Subscription
	err := db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrSubscriptionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// RecordChange appends a before/after image of a subscription mutation inside tx.
func RecordChange(ctx context.Context, tx *gorm.DB, reason types.SubscriptionChangeReason, before, after *models.Subscription, extra map[string]any) error {
	m := datatypes.JSONMap{}
	for k, v := range extra {
		m[k] = v
	}
	if tid := logctx.TraceID(ctx); tid != "" {
		m["trace_id"] = tid
	}
	entry := &models.SubscriptionLog{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: after.ID,
		WalletAddress:  after.WalletAddress,
		Reason:         reason,
		Before:         datatypes.NewJSONType(before.Snapshot()),
		After:          datatypes.NewJSONType(after.Snapshot()),
		Extra:          m,
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save subscription log: %w", err)
	}
	return nil
}
