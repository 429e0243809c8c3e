package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"saas-billing/internal/domain/billing"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Append inserts a ledger row unless one already exists for the same invoice
// and outcome. inserted is false for such a duplicate.
func (r *PaymentRepository) Append(ctx context.Context, p *billing.Payment) (inserted bool, err error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return false, fmt.Errorf("append payment for invoice %s: %w", p.StripeInvoiceID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListByUser returns the user's payments, newest first. limit <= 0 means no limit.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]billing.Payment, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var payments []billing.Payment
	if err := q.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// MarkRefunded records a refund against the succeeded row of an invoice.
// A full refund moves the row to status refunded. Returns nil when the
// invoice has no paid row.
func (r *PaymentRepository) MarkRefunded(ctx context.Context, invoiceID string, amount int64, full bool, at time.Time) (*billing.Payment, error) {
	var p billing.Payment
	err := r.db.WithContext(ctx).
		Where("stripe_invoice_id = ? AND status IN ?", invoiceID,
			[]billing.PaymentStatus{billing.PaymentSucceeded, billing.PaymentRefunded}).
		First(&p).Error
	if row, err := found(&p, err, "find payment by invoice"); row == nil || err != nil {
		return nil, err
	}

	cols := map[string]any{
		"refunded_amount": amount,
		"refunded_at":     at,
	}
	if full {
		cols["status"] = billing.PaymentRefunded
	}
	if err := r.db.WithContext(ctx).Model(&p).Updates(cols).Error; err != nil {
		return nil, fmt.Errorf("mark payment %d refunded: %w", p.ID, err)
	}
	if err := r.db.WithContext(ctx).First(&p, p.ID).Error; err != nil {
		return nil, fmt.Errorf("reload payment %d: %w", p.ID, err)
	}
	return &p, nil
}
