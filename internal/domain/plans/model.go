package plans

import "time"

// CatalogEntry is the presentation snapshot of a plan as discovered from the provider.
// It is never used for authorization.
type CatalogEntry struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	Slug        ID     `gorm:"type:varchar(16);not null;uniqueIndex:idx_plan_catalog_slug" json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProductID   string `gorm:"column:stripe_product_id" json:"productId"`

	MonthlyPriceID string `gorm:"column:stripe_monthly_price_id" json:"monthlyPriceId,omitempty"`
	YearlyPriceID  string `gorm:"column:stripe_yearly_price_id" json:"yearlyPriceId,omitempty"`
	// minor units
	MonthlyAmount int64  `json:"monthlyAmount"`
	YearlyAmount  int64  `json:"yearlyAmount"`
	Currency      string `gorm:"type:varchar(3)" json:"currency"`

	Features  []string `gorm:"serializer:json" json:"features"`
	SortOrder int      `json:"sortOrder"`

	UpdatedAt time.Time `json:"-"`
}

func (CatalogEntry) TableName() string {
	return "plan_catalog_entries"
}

// PriceID returns the provider price for the cycle, or "" when the plan has none.
func (e CatalogEntry) PriceID(cycle BillingCycle) string {
	if cycle == Yearly {
		return e.YearlyPriceID
	}
	return e.MonthlyPriceID
}

// PriceRef is a resolved provider price for a plan and cycle.
type PriceRef struct {
	Plan      ID
	Cycle     BillingCycle
	PriceID   string
	ProductID string
}
