package billing

import "time"

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is an append-only ledger row per invoice outcome.
// Only the refund columns change after insert.
type Payment struct {
	ID     uint    `gorm:"primaryKey" json:"id"`
	UserID *string `gorm:"type:varchar(36);index" json:"-"`

	SubscriptionID *uint         `gorm:"index" json:"subscriptionId,omitempty"`
	Subscription   *Subscription `gorm:"constraint:OnDelete:SET NULL" json:"-"`

	StripeInvoiceID       string  `gorm:"column:stripe_invoice_id;not null;uniqueIndex:idx_payment_invoice_status" json:"invoiceId"`
	StripePaymentIntentID *string `gorm:"column:stripe_payment_intent_id" json:"paymentIntentId,omitempty"`

	// minor units
	Amount   int64         `gorm:"not null" json:"amount"`
	Currency string        `gorm:"type:varchar(3)" json:"currency"`
	Status   PaymentStatus `gorm:"type:varchar(16);not null;uniqueIndex:idx_payment_invoice_status" json:"status"`

	PeriodStart *time.Time `json:"periodStart,omitempty"`
	PeriodEnd   *time.Time `json:"periodEnd,omitempty"`

	RefundedAmount int64      `json:"refundedAmount"`
	RefundedAt     *time.Time `json:"refundedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (Payment) TableName() string {
	return "payment_history"
}
