package plans

import (
	"errors"
	"strings"
)

// ID identifies a plan independently of the provider's product ids.
type ID string

const (
	Free    ID = "free"
	Starter ID = "starter"
	Pro     ID = "pro"
)

// rank is the fixed total order used for upgrade/downgrade decisions.
// Prices never participate in it.
var rank = map[ID]int{
	Free:    0,
	Starter: 1,
	Pro:     2,
}

var (
	ErrPlanNotFound  = errors.New("plan not found")
	ErrPriceNotFound = errors.New("price not found for billing cycle")
)

// All returns the known plans in ascending order.
func All() []ID {
	return []ID{Free, Starter, Pro}
}

func ParseID(s string) (ID, bool) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rank[id]; !ok {
		return "", false
	}
	return id, true
}

func (id ID) Rank() int {
	r, ok := rank[id]
	if !ok {
		return -1
	}
	return r
}

// Paid reports whether the plan is sold through checkout.
func (id ID) Paid() bool {
	return id == Starter || id == Pro
}

func (id ID) Title() string {
	switch id {
	case Free:
		return "Free"
	case Starter:
		return "Starter"
	case Pro:
		return "Pro"
	}
	return string(id)
}

// Direction of a plan change.
type Direction int

const (
	Lateral Direction = iota
	Upgrade
	Downgrade
)

func (d Direction) String() string {
	switch d {
	case Upgrade:
		return "upgrade"
	case Downgrade:
		return "downgrade"
	}
	return "lateral"
}

// ChangeDirection compares target against current using the fixed plan order.
func ChangeDirection(current, target ID) Direction {
	switch {
	case target.Rank() > current.Rank():
		return Upgrade
	case target.Rank() < current.Rank():
		return Downgrade
	default:
		return Lateral
	}
}

type BillingCycle string

const (
	Monthly BillingCycle = "monthly"
	Yearly  BillingCycle = "yearly"
)

func ParseBillingCycle(s string) (BillingCycle, bool) {
	switch BillingCycle(strings.ToLower(strings.TrimSpace(s))) {
	case Monthly:
		return Monthly, true
	case Yearly:
		return Yearly, true
	}
	return "", false
}

// Interval is the provider's recurring interval for the cycle.
func (c BillingCycle) Interval() string {
	if c == Yearly {
		return "year"
	}
	return "month"
}

// CycleFromInterval maps a provider recurring interval back to a cycle.
func CycleFromInterval(interval string) (BillingCycle, bool) {
	switch interval {
	case "month":
		return Monthly, true
	case "year":
		return Yearly, true
	}
	return "", false
}
