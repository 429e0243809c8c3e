package billing

import "time"

type WebhookEventStatus string

const (
	WebhookProcessed WebhookEventStatus = "processed"
	WebhookFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is the audit and idempotency ledger for provider deliveries.
// The unique provider event id is the deduplication gate.
type WebhookEvent struct {
	ID            uint   `gorm:"primaryKey"`
	StripeEventID string `gorm:"column:stripe_event_id;not null;uniqueIndex:idx_webhook_events_stripe_id"`
	Type          string `gorm:"type:varchar(128);not null;index"`
	Payload       string `gorm:"type:text"`
	ObjectID      string
	ObjectType    string `gorm:"type:varchar(64)"`

	Status     WebhookEventStatus `gorm:"type:varchar(16);not null"`
	RetryCount int                `gorm:"not null;default:0"`
	Error      *string            `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
