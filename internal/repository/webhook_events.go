package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"saas-billing/internal/domain/billing"
)

// WebhookEventRepository is the idempotency ledger. The unique provider
// event id turns a concurrent second insert into a no-op.
type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Record inserts the event. recorded is false when the event id is already
// in the ledger, meaning the delivery is a duplicate.
func (r *WebhookEventRepository) Record(ctx context.Context, ev *billing.WebhookEvent) (recorded bool, err error) {
	if ev.Status == "" {
		ev.Status = billing.WebhookProcessed
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_event_id"}},
			DoNothing: true,
		}).
		Create(ev)
	if res.Error != nil {
		return false, fmt.Errorf("record webhook event %s: %w", ev.StripeEventID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *WebhookEventRepository) Get(ctx context.Context, eventID string) (*billing.WebhookEvent, error) {
	var ev billing.WebhookEvent
	err := r.db.WithContext(ctx).Where("stripe_event_id = ?", eventID).First(&ev).Error
	return found(&ev, err, "find webhook event")
}

func (r *WebhookEventRepository) IncrementRetry(ctx context.Context, eventID string) error {
	if err := r.db.WithContext(ctx).
		Model(&billing.WebhookEvent{}).
		Where("stripe_event_id = ?", eventID).
		Update("retry_count", gorm.Expr("retry_count + ?", 1)).Error; err != nil {
		return fmt.Errorf("increment retry of webhook event %s: %w", eventID, err)
	}
	return nil
}

func (r *WebhookEventRepository) MarkFailed(ctx context.Context, eventID string, cause error) error {
	msg := cause.Error()
	if err := r.db.WithContext(ctx).
		Model(&billing.WebhookEvent{}).
		Where("stripe_event_id = ?", eventID).
		Updates(map[string]any{
			"status": billing.WebhookFailed,
			"error":  msg,
		}).Error; err != nil {
		return fmt.Errorf("mark webhook event %s failed: %w", eventID, err)
	}
	return nil
}
