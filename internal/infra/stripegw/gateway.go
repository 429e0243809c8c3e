package stripegw

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"

	"saas-billing/internal/domain/billing"
)

// Proration behaviours understood by the provider.
const (
	ProrationAlwaysInvoice = "always_invoice"
	ProrationNone          = "none"
)

// Client is the only place that talks to Stripe. It holds its own API
// handle instead of the package-level stripe.Key.
type Client struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

func New(secretKey, webhookSecret string, logger *zap.Logger) *Client {
	return &Client{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		logger:        logger.Named("stripe"),
	}
}

// ConstructEvent verifies the Stripe-Signature header against the raw body.
func (c *Client) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, billing.MissingSignature()
	}
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return stripe.Event{}, billing.InvalidSignature(err)
	}
	return event, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]*stripe.Product, error) {
	params := &stripe.ProductListParams{Active: stripe.Bool(true)}
	params.Context = ctx

	var out []*stripe.Product
	it := c.api.Products.List(params)
	for it.Next() {
		out = append(out, it.Product())
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return out, nil
}

func (c *Client) ListPrices(ctx context.Context, productID string) ([]*stripe.Price, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	params.Context = ctx

	var out []*stripe.Price
	it := c.api.Prices.List(params)
	for it.Next() {
		out = append(out, it.Price())
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prices for product %s: %w", productID, err)
	}
	return out, nil
}

func (c *Client) CreateCustomer(ctx context.Context, email string, metadata map[string]string, idempotencyKey string) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: metadata,
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return cus.ID, nil
}

type CheckoutSessionInput struct {
	CustomerID     string
	PriceID        string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession starts a subscription checkout. Metadata is stamped on
// both the session and the subscription it will create.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(in.CustomerID),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(in.Metadata[MetaUserID]),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: in.Metadata,
		},
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create billing portal session: %w", err)
	}
	return s.URL, nil
}

func (c *Client) RetrieveSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve subscription %s: %w", id, err)
	}
	return sub, nil
}

// SubscriptionChange describes an update to an existing subscription.
// An empty PriceID leaves the items alone.
type SubscriptionChange struct {
	PriceID           string
	ProrationBehavior string
	KeepBillingAnchor bool
	CancelAtPeriodEnd *bool
	Metadata          map[string]string
}

func (c *Client) UpdateSubscription(ctx context.Context, id string, change SubscriptionChange) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	if change.PriceID != "" {
		current, err := c.RetrieveSubscription(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Items == nil || len(current.Items.Data) == 0 {
			return nil, errors.New("subscription has no price item")
		}
		params.Items = []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(change.PriceID),
			},
		}
	}
	if change.ProrationBehavior != "" {
		params.ProrationBehavior = stripe.String(change.ProrationBehavior)
	}
	if change.KeepBillingAnchor {
		params.BillingCycleAnchorUnchanged = stripe.Bool(true)
	}
	if change.CancelAtPeriodEnd != nil {
		params.CancelAtPeriodEnd = change.CancelAtPeriodEnd
	}
	for k, v := range change.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := c.api.Subscriptions.Update(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription %s: %w", id, err)
	}
	c.logger.Info("subscription updated",
		zap.String("subscription_id", id),
		zap.String("price_id", change.PriceID),
		zap.String("proration", change.ProrationBehavior),
	)
	return sub, nil
}

// CancelSubscription hard-cancels when immediately is set, otherwise flags the
// subscription to end with the current period.
func (c *Client) CancelSubscription(ctx context.Context, id string, immediately bool) (*stripe.Subscription, error) {
	if !immediately {
		return c.UpdateSubscription(ctx, id, SubscriptionChange{CancelAtPeriodEnd: stripe.Bool(true)})
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Cancel(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription %s: %w", id, err)
	}
	c.logger.Info("subscription canceled", zap.String("subscription_id", id))
	return sub, nil
}
