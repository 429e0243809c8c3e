package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"saas-billing/internal/domain/billing"
)

var ErrDuplicateSubscription = errors.New("subscription with this external id already exists")

// SubscriptionRepository persists local subscription rows. Absent rows are
// reported as (nil, nil); turning that into NotFound is the caller's call.
type SubscriptionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, now: time.Now}
}

func (r *SubscriptionRepository) FindActiveByUserID(ctx context.Context, userID string) (*billing.Subscription, error) {
	var sub billing.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, billing.LiveStatuses).
		Order("created_at DESC").
		First(&sub).Error
	return found(&sub, err, "find active subscription")
}

func (r *SubscriptionRepository) FindByExternalID(ctx context.Context, externalID string) (*billing.Subscription, error) {
	var sub billing.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", externalID).
		First(&sub).Error
	return found(&sub, err, "find subscription by external id")
}

// ListByStatus returns every subscription in one of statuses, oldest first.
func (r *SubscriptionRepository) ListByStatus(ctx context.Context, statuses []billing.Status) ([]billing.Subscription, error) {
	var subs []billing.Subscription
	if err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("id ASC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// Create inserts a new row. A second row for the same external id fails with
// ErrDuplicateSubscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *billing.Subscription) (*billing.Subscription, error) {
	existing, err := r.FindByExternalID(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateSubscription
	}
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race on the external id, or hit the one-active-per-user index
			if raced, ferr := r.FindByExternalID(ctx, sub.StripeSubscriptionID); ferr == nil && raced != nil {
				return nil, ErrDuplicateSubscription
			}
		}
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

// Update applies patch to the row with the local id, stamping updated_at.
func (r *SubscriptionRepository) Update(ctx context.Context, id uint, patch billing.SubscriptionPatch) (*billing.Subscription, error) {
	return r.updateWhere(ctx, "id = ?", id, patch)
}

// UpdateByExternalID applies patch to the row with the provider id, stamping updated_at.
func (r *SubscriptionRepository) UpdateByExternalID(ctx context.Context, externalID string, patch billing.SubscriptionPatch) (*billing.Subscription, error) {
	return r.updateWhere(ctx, "stripe_subscription_id = ?", externalID, patch)
}

// updateWhere relies on the store's row lock for the single UPDATE; concurrent
// writers on the same row resolve as last-write-wins.
func (r *SubscriptionRepository) updateWhere(ctx context.Context, cond string, arg any, patch billing.SubscriptionPatch) (*billing.Subscription, error) {
	cols := patch.Columns()
	cols["updated_at"] = r.now()

	res := r.db.WithContext(ctx).
		Model(&billing.Subscription{}).
		Where(cond, arg).
		Updates(cols)
	if res.Error != nil {
		return nil, fmt.Errorf("update subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var sub billing.Subscription
	err := r.db.WithContext(ctx).Where(cond, arg).First(&sub).Error
	return found(&sub, err, "reload subscription")
}

func found[T any](v *T, err error, op string) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}
