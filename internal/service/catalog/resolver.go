// Package catalog maps plan identifiers and billing cycles to Stripe prices.
//
// The catalog is discovered from product metadata on every cache miss, cached
// in redis and snapshotted to the database so a provider outage still serves
// the last known catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"

	"saas-billing/internal/cache"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/infra/stripegw"
	"saas-billing/internal/metrics"
)

const cacheKey = "billing:plan-catalog"

// unsetSortOrder pushes products without sortOrder metadata to the end.
const unsetSortOrder = math.MaxInt32

type Provider interface {
	ListProducts(ctx context.Context) ([]*stripe.Product, error)
	ListPrices(ctx context.Context, productID string) ([]*stripe.Price, error)
}

type Snapshot interface {
	ReplaceAll(ctx context.Context, entries []plans.CatalogEntry) error
	List(ctx context.Context) ([]plans.CatalogEntry, error)
}

type Resolver struct {
	provider Provider
	snapshot Snapshot
	cache    *cache.Client
	ttl      time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New builds a resolver. cache may be nil to disable caching.
func New(provider Provider, snapshot Snapshot, c *cache.Client, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		provider: provider,
		snapshot: snapshot,
		cache:    c,
		ttl:      ttl,
		logger:   logger.Named("catalog"),
		metrics:  m,
	}
}

// Plans returns the public catalog in display order.
func (r *Resolver) Plans(ctx context.Context) ([]plans.CatalogEntry, error) {
	if entries, ok := r.cached(ctx); ok {
		return entries, nil
	}

	entries, err := r.Build(ctx)
	if err != nil {
		r.logger.Warn("catalog discovery failed, serving stored snapshot", zap.Error(err))
		stored, serr := r.snapshot.List(ctx)
		if serr != nil {
			return nil, errors.Join(err, serr)
		}
		if len(stored) == 0 {
			return nil, err
		}
		return stored, nil
	}

	if err := r.snapshot.ReplaceAll(ctx, entries); err != nil {
		r.logger.Warn("failed to store catalog snapshot", zap.Error(err))
	}
	r.store(ctx, entries)
	return entries, nil
}

// Sync rebuilds the catalog from the provider, bypassing the cache.
func (r *Resolver) Sync(ctx context.Context) ([]plans.CatalogEntry, error) {
	entries, err := r.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.snapshot.ReplaceAll(ctx, entries); err != nil {
		return nil, err
	}
	r.store(ctx, entries)
	r.logger.Info("plan catalog synced", zap.Int("plans", len(entries)))
	return entries, nil
}

// ResolvePrice returns the provider price for plan and cycle. It fails with
// plans.ErrPlanNotFound for an unknown or unsold plan and with
// plans.ErrPriceNotFound when the plan has no price for the cycle.
func (r *Resolver) ResolvePrice(ctx context.Context, plan plans.ID, cycle plans.BillingCycle) (plans.PriceRef, error) {
	if !plan.Paid() {
		return plans.PriceRef{}, fmt.Errorf("%w: %q", plans.ErrPlanNotFound, plan)
	}

	entries, err := r.Plans(ctx)
	if err != nil {
		return plans.PriceRef{}, err
	}
	for _, e := range entries {
		if e.Slug != plan {
			continue
		}
		priceID := e.PriceID(cycle)
		if priceID == "" {
			return plans.PriceRef{}, fmt.Errorf("%w: %s/%s", plans.ErrPriceNotFound, plan, cycle)
		}
		return plans.PriceRef{Plan: plan, Cycle: cycle, PriceID: priceID, ProductID: e.ProductID}, nil
	}
	return plans.PriceRef{}, fmt.Errorf("%w: %q", plans.ErrPlanNotFound, plan)
}

// Build discovers the catalog from the provider's active products.
func (r *Resolver) Build(ctx context.Context) ([]plans.CatalogEntry, error) {
	products, err := r.provider.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	var entries []plans.CatalogEntry
	seen := map[plans.ID]bool{}
	for _, p := range products {
		md := stripegw.ParseProductMetadata(p.Metadata)
		if !md.Public {
			continue
		}
		id, ok := md.PlanID, md.HasPlanID
		if !ok {
			id, ok = plans.ParseID(p.Name)
		}
		if !ok {
			r.logger.Debug("skipping product without plan identity", zap.String("product_id", p.ID))
			continue
		}
		if seen[id] {
			r.logger.Warn("duplicate product for plan, keeping the first",
				zap.String("plan", string(id)), zap.String("product_id", p.ID))
			continue
		}
		seen[id] = true

		entry := plans.CatalogEntry{
			Slug:        id,
			Name:        p.Name,
			Description: p.Description,
			ProductID:   p.ID,
			Features:    md.Features,
			SortOrder:   unsetSortOrder,
		}
		switch {
		case id == plans.Free:
			entry.SortOrder = 0
		case md.SortOrder != nil:
			entry.SortOrder = *md.SortOrder
		}

		if id.Paid() {
			prices, err := r.provider.ListPrices(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			applyPrices(&entry, prices)
		}
		entries = append(entries, entry)
	}

	if !seen[plans.Free] {
		entries = append(entries, plans.CatalogEntry{Slug: plans.Free, Name: plans.Free.Title()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SortOrder < entries[j].SortOrder
	})
	return entries, nil
}

// applyPrices picks the first recurring price per interval, in provider order.
func applyPrices(entry *plans.CatalogEntry, prices []*stripe.Price) {
	for _, pr := range prices {
		if pr == nil || !pr.Active || pr.Recurring == nil {
			continue
		}
		cycle, ok := plans.CycleFromInterval(string(pr.Recurring.Interval))
		if !ok {
			continue
		}
		switch {
		case cycle == plans.Monthly && entry.MonthlyPriceID == "":
			entry.MonthlyPriceID = pr.ID
			entry.MonthlyAmount = pr.UnitAmount
		case cycle == plans.Yearly && entry.YearlyPriceID == "":
			entry.YearlyPriceID = pr.ID
			entry.YearlyAmount = pr.UnitAmount
		default:
			continue
		}
		if entry.Currency == "" {
			entry.Currency = string(pr.Currency)
		}
	}
}

func (r *Resolver) cached(ctx context.Context) ([]plans.CatalogEntry, bool) {
	if r.cache == nil {
		return nil, false
	}
	var entries []plans.CatalogEntry
	err := r.cache.GetJSON(ctx, cacheKey, &entries)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("catalog cache read failed", zap.Error(err))
	}
	hit := err == nil && len(entries) > 0
	r.metrics.RecordCatalogCache(hit)
	return entries, hit
}

func (r *Resolver) store(ctx context.Context, entries []plans.CatalogEntry) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetJSON(ctx, cacheKey, entries, r.ttl); err != nil {
		r.logger.Warn("catalog cache write failed", zap.Error(err))
	}
}
