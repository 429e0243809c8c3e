package stripegw

import (
	"fmt"
	"strconv"
	"strings"

	"saas-billing/internal/domain/plans"
)

// Metadata keys shared with the checkout flow and the Stripe dashboard.
const (
	MetaUserID       = "userId"
	MetaPlanID       = "planId"
	MetaBillingCycle = "billingCycle"
	MetaPublic       = "public"
	MetaSortOrder    = "sortOrder"
	MetaFeatures     = "features"
)

// Truthy is the boolean-ish coercion used for metadata flags:
// true and "true" are true, anything else is false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	}
	return false
}

// ProductMetadata is the typed view of a product's metadata. Keys this
// service does not understand stay in Extra.
type ProductMetadata struct {
	PlanID    plans.ID
	HasPlanID bool
	Public    bool
	SortOrder *int
	Features  []string
	Extra     map[string]string
}

func ParseProductMetadata(md map[string]string) ProductMetadata {
	out := ProductMetadata{Extra: map[string]string{}}
	for k, v := range md {
		switch k {
		case MetaPlanID:
			if id, ok := plans.ParseID(v); ok {
				out.PlanID, out.HasPlanID = id, true
			}
		case MetaPublic:
			out.Public = Truthy(v)
		case MetaSortOrder:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				out.SortOrder = &n
			}
		case MetaFeatures:
			for _, f := range strings.Split(v, ",") {
				if f = strings.TrimSpace(f); f != "" {
					out.Features = append(out.Features, f)
				}
			}
		default:
			out.Extra[k] = v
		}
	}
	return out
}

// SubscriptionMetadata is what checkout stamps on the provider subscription so
// webhook handlers never need a second lookup.
type SubscriptionMetadata struct {
	UserID string
	PlanID plans.ID
	Cycle  plans.BillingCycle
}

func (m SubscriptionMetadata) Map() map[string]string {
	return map[string]string{
		MetaUserID:       m.UserID,
		MetaPlanID:       string(m.PlanID),
		MetaBillingCycle: string(m.Cycle),
	}
}

func ParseSubscriptionMetadata(md map[string]string) (SubscriptionMetadata, error) {
	var out SubscriptionMetadata
	out.UserID = strings.TrimSpace(md[MetaUserID])
	if out.UserID == "" {
		return out, fmt.Errorf("metadata %s missing", MetaUserID)
	}
	id, ok := plans.ParseID(md[MetaPlanID])
	if !ok {
		return out, fmt.Errorf("metadata %s invalid: %q", MetaPlanID, md[MetaPlanID])
	}
	cycle, ok := plans.ParseBillingCycle(md[MetaBillingCycle])
	if !ok {
		return out, fmt.Errorf("metadata %s invalid: %q", MetaBillingCycle, md[MetaBillingCycle])
	}
	out.PlanID, out.Cycle = id, cycle
	return out, nil
}
