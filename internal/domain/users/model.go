package users

import (
	"time"

	"saas-billing/internal/domain/plans"
)

// User is the billing view of a profile. Identity comes from the auth provider
// (Supabase), so the primary key is the auth subject, not a local sequence.
type User struct {
	ID    string `gorm:"primaryKey;type:varchar(36)"`
	Email string `gorm:"not null;index"`

	// denormalized copy of the live subscription's plan, for cheap authorization checks
	Plan plans.ID `gorm:"type:varchar(16);not null;default:'free'"`

	StripeCustomerID *string `gorm:"column:stripe_customer_id;uniqueIndex:idx_users_stripe_customer_id"`

	UsageCount   int `gorm:"not null;default:0"`
	UsageResetAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u User) HasCustomer() bool {
	return u.StripeCustomerID != nil && *u.StripeCustomerID != ""
}
