package testsupport

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// SignedEvent renders a Stripe event envelope around object and signs it
// with secret. It returns the raw body and the Stripe-Signature header.
func SignedEvent(t testing.TB, secret, id, eventType string, created time.Time, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     created.Unix(),
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})
	return signed.Payload, signed.Header
}

// StripeSubscription builds a provider subscription for the fake gateway.
func StripeSubscription(id, priceID, productID string, status stripe.SubscriptionStatus, start, end time.Time) *stripe.Subscription {
	return &stripe.Subscription{
		ID:                 id,
		Status:             status,
		CurrentPeriodStart: start.Unix(),
		CurrentPeriodEnd:   end.Unix(),
		Items:              SubscriptionItems(priceID, productID, ""),
		Metadata:           map[string]string{},
	}
}
