package webhook

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/infra/stripegw"
)

// invoicePaymentSucceeded appends a paid ledger row and, for monthly plans,
// restarts the usage window at the invoice's period end. No row is written
// for an unknown subscription.
func (p *Processor) invoicePaymentSucceeded(ctx context.Context, e stripegw.InvoicePaymentSucceeded, log *zap.Logger) error {
	inv := e.Invoice
	subID := invoiceSubscriptionID(inv)
	log = log.With(zap.String("invoice_id", inv.ID), zap.String("subscription_id", subID))
	if subID == "" {
		log.Info("invoice without subscription ignored")
		return nil
	}

	sub, err := p.subscriptions.FindByExternalID(ctx, subID)
	if err != nil {
		return err
	}
	if sub == nil {
		log.Warn("subscription not found, payment not recorded")
		return nil
	}

	payment := newPayment(inv, billing.PaymentSucceeded, inv.AmountPaid)
	payment.UserID, payment.SubscriptionID = &sub.UserID, &sub.ID

	inserted, err := p.payments.Append(ctx, payment)
	if err != nil {
		return err
	}
	if !inserted {
		log.Info("payment already recorded")
		return nil
	}

	if sub.BillingCycle != plans.Monthly {
		return nil
	}
	next := payment.PeriodEnd
	if next == nil {
		log.Warn("invoice has no period end, usage not reset")
		return nil
	}
	ok, err := p.users.ResetUsage(ctx, sub.UserID, *next)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn("profile not found, usage not reset", zap.String("user_id", sub.UserID))
	}
	return nil
}

// invoicePaymentFailed flags the subscription past_due and records the amount
// due. The ledger row is written even when the subscription is unknown,
// attributed to whichever owner can still be resolved.
func (p *Processor) invoicePaymentFailed(ctx context.Context, e stripegw.InvoicePaymentFailed, log *zap.Logger) error {
	inv := e.Invoice
	subID := invoiceSubscriptionID(inv)
	log = log.With(zap.String("invoice_id", inv.ID), zap.String("subscription_id", subID))

	payment := newPayment(inv, billing.PaymentFailed, inv.AmountDue)

	var sub *billing.Subscription
	if subID != "" {
		status := billing.StatusPastDue
		updated, err := p.subscriptions.UpdateByExternalID(ctx, subID, billing.SubscriptionPatch{Status: &status})
		if err != nil {
			return err
		}
		sub = updated
	}
	if sub != nil {
		payment.UserID, payment.SubscriptionID = &sub.UserID, &sub.ID
	} else {
		log.Warn("subscription not found, past_due status update skipped")
		userID, err := p.invoiceOwner(ctx, inv)
		if err != nil {
			return err
		}
		if userID != "" {
			payment.UserID = &userID
		}
	}

	inserted, err := p.payments.Append(ctx, payment)
	if err != nil {
		return err
	}
	if !inserted {
		log.Info("failed payment already recorded")
	}
	return nil
}

// chargeRefunded updates the refund columns of the invoice's paid row.
func (p *Processor) chargeRefunded(ctx context.Context, e stripegw.ChargeRefunded, log *zap.Logger) error {
	ch := e.Charge
	if ch.Invoice == nil || ch.Invoice.ID == "" {
		log.Info("refund of a charge without invoice ignored", zap.String("charge_id", ch.ID))
		return nil
	}
	log = log.With(zap.String("charge_id", ch.ID), zap.String("invoice_id", ch.Invoice.ID))

	payment, err := p.payments.MarkRefunded(ctx, ch.Invoice.ID, ch.AmountRefunded, ch.Refunded, p.now().UTC())
	if err != nil {
		return err
	}
	if payment == nil {
		log.Warn("no paid ledger row for refunded invoice")
		return nil
	}
	log.Info("refund recorded", zap.Int64("amount_refunded", ch.AmountRefunded), zap.Bool("full", ch.Refunded))
	return nil
}

// invoiceOwner resolves the user behind an invoice whose subscription has no
// local row: subscription metadata first, then the customer.
func (p *Processor) invoiceOwner(ctx context.Context, inv *stripe.Invoice) (string, error) {
	if inv.Subscription != nil && inv.Subscription.Metadata[stripegw.MetaUserID] != "" {
		return inv.Subscription.Metadata[stripegw.MetaUserID], nil
	}
	if inv.Customer == nil || inv.Customer.ID == "" {
		return "", nil
	}
	u, err := p.users.FindByStripeCustomerID(ctx, inv.Customer.ID)
	if err != nil || u == nil {
		return "", err
	}
	return u.ID, nil
}

func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Subscription == nil {
		return ""
	}
	return inv.Subscription.ID
}

func newPayment(inv *stripe.Invoice, status billing.PaymentStatus, amount int64) *billing.Payment {
	p := &billing.Payment{
		StripeInvoiceID: inv.ID,
		Amount:          amount,
		Currency:        string(inv.Currency),
		Status:          status,
	}
	if inv.PaymentIntent != nil && inv.PaymentIntent.ID != "" {
		id := inv.PaymentIntent.ID
		p.StripePaymentIntentID = &id
	}
	p.PeriodStart, p.PeriodEnd = invoicePeriod(inv)
	return p
}

// invoicePeriod is the service period billed: the first line's period, else
// the invoice's own bounds.
func invoicePeriod(inv *stripe.Invoice) (start, end *time.Time) {
	if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period != nil {
		period := inv.Lines.Data[0].Period
		return stripegw.Unix(period.Start), stripegw.Unix(period.End)
	}
	return stripegw.Unix(inv.PeriodStart), stripegw.Unix(inv.PeriodEnd)
}
