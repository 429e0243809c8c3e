package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"saas-billing/internal/domain/plans"
	"saas-billing/internal/domain/users"
)

// UserRepository touches only the billing columns of a profile.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*users.User, error) {
	var u users.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	return found(&u, err, "find user")
}

func (r *UserRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*users.User, error) {
	var u users.User
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&u).Error
	return found(&u, err, "find user by customer")
}

// Ensure creates the profile on first contact and keeps its email current.
func (r *UserRepository) Ensure(ctx context.Context, id, email string) (*users.User, error) {
	u := users.User{ID: id, Email: email, Plan: plans.Free}

	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	if email != "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "updated_at"}),
		}
	}
	if err := r.db.WithContext(ctx).Clauses(onConflict).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", id, err)
	}
	return r.Get(ctx, id)
}

func (r *UserRepository) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	if err := r.db.WithContext(ctx).
		Model(&users.User{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID).Error; err != nil {
		return fmt.Errorf("store stripe customer for user %s: %w", id, err)
	}
	return nil
}

// SetPlan updates the denormalized plan. ok is false when the profile does not exist.
func (r *UserRepository) SetPlan(ctx context.Context, id string, plan plans.ID) (ok bool, err error) {
	res := r.db.WithContext(ctx).
		Model(&users.User{}).
		Where("id = ?", id).
		Update("plan", plan)
	if res.Error != nil {
		return false, fmt.Errorf("set plan of user %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ResetUsage zeroes the usage counter and schedules the next reset.
func (r *UserRepository) ResetUsage(ctx context.Context, id string, nextReset time.Time) (ok bool, err error) {
	res := r.db.WithContext(ctx).
		Model(&users.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"usage_count":    0,
			"usage_reset_at": nextReset,
		})
	if res.Error != nil {
		return false, fmt.Errorf("reset usage of user %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
