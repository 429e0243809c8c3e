package stripegw

import (
	"strings"

	"github.com/stripe/stripe-go/v75"

	"saas-billing/internal/domain/billing"
)

// Status maps a provider subscription status onto the local enum.
// Statuses the local model does not know (e.g. "paused") report ok=false
// so callers can leave the stored status untouched.
func Status(s stripe.SubscriptionStatus) (billing.Status, bool) {
	return billing.ParseStatus(strings.TrimSpace(string(s)))
}
