package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v75"

	"saas-billing/internal/infra/stripegw"
)

// FakeGateway is an in-memory Stripe stand-in that records every call.
type FakeGateway struct {
	mu sync.Mutex

	Products      []*stripe.Product
	Prices        map[string][]*stripe.Price
	Subscriptions map[string]*stripe.Subscription

	// CheckoutURL is returned by CreateCheckoutSession; set to "" to simulate a missing URL.
	CheckoutURL string
	// Err fails every call when set. ListErr fails only the catalog listings.
	Err     error
	ListErr error

	Calls     []string
	Customers []string
	Checkouts []stripegw.CheckoutSessionInput
	Changes   []stripegw.SubscriptionChange
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Prices:        map[string][]*stripe.Price{},
		Subscriptions: map[string]*stripe.Subscription{},
		CheckoutURL:   "https://checkout.stripe.test/c/pay/cs_test_1",
	}
}

func (f *FakeGateway) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
	return f.Err
}

// CallCount returns how many times the named method was invoked.
func (f *FakeGateway) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *FakeGateway) ListProducts(ctx context.Context) ([]*stripe.Product, error) {
	if err := f.record("ListProducts"); err != nil {
		return nil, err
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Products, nil
}

func (f *FakeGateway) ListPrices(ctx context.Context, productID string) ([]*stripe.Price, error) {
	if err := f.record("ListPrices"); err != nil {
		return nil, err
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Prices[productID], nil
}

func (f *FakeGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string, idempotencyKey string) (string, error) {
	if err := f.record("CreateCustomer"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Customers = append(f.Customers, idempotencyKey)
	return fmt.Sprintf("cus_test_%d", len(f.Customers)), nil
}

func (f *FakeGateway) CreateCheckoutSession(ctx context.Context, in stripegw.CheckoutSessionInput) (*stripegw.CheckoutSession, error) {
	if err := f.record("CreateCheckoutSession"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Checkouts = append(f.Checkouts, in)
	return &stripegw.CheckoutSession{ID: fmt.Sprintf("cs_test_%d", len(f.Checkouts)), URL: f.CheckoutURL}, nil
}

func (f *FakeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if err := f.record("CreatePortalSession"); err != nil {
		return "", err
	}
	return "https://billing.stripe.test/p/session/" + customerID, nil
}

func (f *FakeGateway) RetrieveSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	if err := f.record("RetrieveSubscription"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.Subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription: " + id)
	}
	cp := *sub
	return &cp, nil
}

func (f *FakeGateway) UpdateSubscription(ctx context.Context, id string, change stripegw.SubscriptionChange) (*stripe.Subscription, error) {
	if err := f.record("UpdateSubscription"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Changes = append(f.Changes, change)

	sub, ok := f.Subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription: " + id)
	}
	if change.PriceID != "" {
		product := ""
		if p := stripegw.PrimaryPrice(sub); p != nil && p.Product != nil {
			product = p.Product.ID
		}
		sub.Items = SubscriptionItems(change.PriceID, product, "")
	}
	if change.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *change.CancelAtPeriodEnd
		sub.CancelAt = 0
		if sub.CancelAtPeriodEnd {
			sub.CancelAt = sub.CurrentPeriodEnd
		}
	}
	if len(change.Metadata) > 0 {
		if sub.Metadata == nil {
			sub.Metadata = map[string]string{}
		}
		for k, v := range change.Metadata {
			sub.Metadata[k] = v
		}
	}
	cp := *sub
	return &cp, nil
}

func (f *FakeGateway) CancelSubscription(ctx context.Context, id string, immediately bool) (*stripe.Subscription, error) {
	if !immediately {
		return f.UpdateSubscription(ctx, id, stripegw.SubscriptionChange{CancelAtPeriodEnd: stripe.Bool(true)})
	}
	if err := f.record("CancelSubscription"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.Subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription: " + id)
	}
	sub.Status = stripe.SubscriptionStatusCanceled
	sub.CanceledAt = time.Now().Unix()
	cp := *sub
	return &cp, nil
}

// Product builds an active product with metadata.
func Product(id, name string, metadata map[string]string) *stripe.Product {
	return &stripe.Product{ID: id, Name: name, Active: true, Metadata: metadata}
}

// Price builds an active recurring price; interval is "month" or "year".
func Price(id, productID, interval string, amount int64) *stripe.Price {
	return &stripe.Price{
		ID:         id,
		Active:     true,
		Currency:   stripe.CurrencyEUR,
		UnitAmount: amount,
		Product:    &stripe.Product{ID: productID},
		Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringInterval(interval)},
	}
}

// SubscriptionItems builds a single-item list for priceID.
func SubscriptionItems(priceID, productID, interval string) *stripe.SubscriptionItemList {
	price := &stripe.Price{ID: priceID, Product: &stripe.Product{ID: productID}}
	if interval != "" {
		price.Recurring = &stripe.PriceRecurring{Interval: stripe.PriceRecurringInterval(interval)}
	}
	return &stripe.SubscriptionItemList{
		Data: []*stripe.SubscriptionItem{{ID: "si_" + priceID, Price: price}},
	}
}

func PriceList(prices ...*stripe.Price) []*stripe.Price {
	return prices
}

// SeedCatalog publishes the starter and pro plans with monthly and yearly prices.
func (f *FakeGateway) SeedCatalog() {
	f.Products = append(f.Products,
		Product("prod_starter", "Starter", map[string]string{"planId": "starter", "public": "true", "sortOrder": "1"}),
		Product("prod_pro", "Pro", map[string]string{"planId": "pro", "public": "true", "sortOrder": "2"}),
	)
	f.Prices["prod_starter"] = PriceList(
		Price("price_starter_m", "prod_starter", "month", 900),
		Price("price_starter_y", "prod_starter", "year", 9000),
	)
	f.Prices["prod_pro"] = PriceList(
		Price("price_pro_m", "prod_pro", "month", 1900),
		Price("price_pro_y", "prod_pro", "year", 19000),
	)
}
