package stripegw

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v75"
)

// Provider event types this service reacts to.
const (
	TypeSubscriptionCreated     = "customer.subscription.created"
	TypeSubscriptionUpdated     = "customer.subscription.updated"
	TypeSubscriptionDeleted     = "customer.subscription.deleted"
	TypeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	TypeInvoicePaymentFailed    = "invoice.payment_failed"
	TypeChargeRefunded          = "charge.refunded"
)

// EventMeta is the envelope shared by every event variant.
type EventMeta struct {
	ID         string
	Type       string
	Created    time.Time
	Raw        json.RawMessage
	ObjectID   string
	ObjectType string
}

// Event is the closed set of provider events. Unknown carries everything
// the service does not handle.
type Event interface {
	Meta() EventMeta
	isEvent()
}

type SubscriptionCreated struct {
	EventMeta
	Subscription *stripe.Subscription
}

type SubscriptionUpdated struct {
	EventMeta
	Subscription *stripe.Subscription
}

type SubscriptionDeleted struct {
	EventMeta
	Subscription *stripe.Subscription
}

type InvoicePaymentSucceeded struct {
	EventMeta
	Invoice *stripe.Invoice
}

type InvoicePaymentFailed struct {
	EventMeta
	Invoice *stripe.Invoice
}

type ChargeRefunded struct {
	EventMeta
	Charge *stripe.Charge
}

type Unknown struct {
	EventMeta
}

func (m EventMeta) Meta() EventMeta { return m }

func (SubscriptionCreated) isEvent()     {}
func (SubscriptionUpdated) isEvent()     {}
func (SubscriptionDeleted) isEvent()     {}
func (InvoicePaymentSucceeded) isEvent() {}
func (InvoicePaymentFailed) isEvent()    {}
func (ChargeRefunded) isEvent()          {}
func (Unknown) isEvent()                 {}

// MetaOf extracts the envelope without decoding the object.
func MetaOf(e stripe.Event) EventMeta {
	m := EventMeta{
		ID:      e.ID,
		Type:    string(e.Type),
		Created: time.Unix(e.Created, 0).UTC(),
	}
	if e.Data != nil {
		m.Raw = e.Data.Raw
		if id, ok := e.Data.Object["id"].(string); ok {
			m.ObjectID = id
		}
		if obj, ok := e.Data.Object["object"].(string); ok {
			m.ObjectType = obj
		}
	}
	return m
}

// Decode turns a verified provider event into its variant. A known type whose
// object does not parse is an error; an unknown type never is.
func Decode(e stripe.Event) (Event, error) {
	meta := MetaOf(e)

	switch meta.Type {
	case TypeSubscriptionCreated, TypeSubscriptionUpdated, TypeSubscriptionDeleted:
		var sub stripe.Subscription
		if err := decodeObject(meta, &sub); err != nil {
			return nil, err
		}
		switch meta.Type {
		case TypeSubscriptionCreated:
			return SubscriptionCreated{EventMeta: meta, Subscription: &sub}, nil
		case TypeSubscriptionUpdated:
			return SubscriptionUpdated{EventMeta: meta, Subscription: &sub}, nil
		default:
			return SubscriptionDeleted{EventMeta: meta, Subscription: &sub}, nil
		}

	case TypeInvoicePaymentSucceeded, TypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := decodeObject(meta, &inv); err != nil {
			return nil, err
		}
		if meta.Type == TypeInvoicePaymentSucceeded {
			return InvoicePaymentSucceeded{EventMeta: meta, Invoice: &inv}, nil
		}
		return InvoicePaymentFailed{EventMeta: meta, Invoice: &inv}, nil

	case TypeChargeRefunded:
		var ch stripe.Charge
		if err := decodeObject(meta, &ch); err != nil {
			return nil, err
		}
		return ChargeRefunded{EventMeta: meta, Charge: &ch}, nil
	}

	return Unknown{EventMeta: meta}, nil
}

func decodeObject(meta EventMeta, into any) error {
	if len(meta.Raw) == 0 {
		return fmt.Errorf("event %s (%s) has no data object", meta.ID, meta.Type)
	}
	if err := json.Unmarshal(meta.Raw, into); err != nil {
		return fmt.Errorf("failed to parse %s object of event %s: %w", meta.Type, meta.ID, err)
	}
	return nil
}
