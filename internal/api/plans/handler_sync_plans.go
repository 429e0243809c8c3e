package plans

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"saas-billing/internal/api/apierror"
	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
)

type Catalog interface {
	Plans(ctx context.Context) ([]plans.CatalogEntry, error)
	Sync(ctx context.Context) ([]plans.CatalogEntry, error)
}

type Handler struct {
	catalog Catalog
	logger  *zap.Logger
}

func NewHandler(catalog Catalog, logger *zap.Logger) *Handler {
	return &Handler{catalog: catalog, logger: logger.Named("plans_http")}
}

// PlanResponse is the public view of a catalog entry. Prices are in minor
// units; a nil price means the plan is not sold for that cycle.
type PlanResponse struct {
	ID           plans.ID `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	MonthlyPrice *int64   `json:"monthlyPrice"`
	YearlyPrice  *int64   `json:"yearlyPrice"`
	Currency     string   `json:"currency,omitempty"`
	Features     []string `json:"features"`
}

func toPlanResponses(entries []plans.CatalogEntry) []PlanResponse {
	out := make([]PlanResponse, 0, len(entries))
	for _, e := range entries {
		features := e.Features
		if features == nil {
			features = []string{}
		}
		out = append(out, PlanResponse{
			ID:           e.Slug,
			Name:         e.Name,
			Description:  e.Description,
			MonthlyPrice: priceOf(e, plans.Monthly, e.MonthlyAmount),
			YearlyPrice:  priceOf(e, plans.Yearly, e.YearlyAmount),
			Currency:     e.Currency,
			Features:     features,
		})
	}
	return out
}

func priceOf(e plans.CatalogEntry, cycle plans.BillingCycle, amount int64) *int64 {
	if e.Slug == plans.Free {
		zero := int64(0)
		return &zero
	}
	if e.PriceID(cycle) == "" {
		return nil
	}
	return &amount
}

func (h *Handler) ListPlans(c *gin.Context) {
	entries, err := h.catalog.Plans(c.Request.Context())
	if err != nil {
		apierror.Respond(c, billing.Internal("failed to load plans", err))
		return
	}
	c.JSON(http.StatusOK, toPlanResponses(entries))
}

// SyncPlansFromStripe rebuilds the catalog from Stripe and refreshes the
// stored snapshot and cache.
func (h *Handler) SyncPlansFromStripe(c *gin.Context) {
	entries, err := h.catalog.Sync(c.Request.Context())
	if err != nil {
		apierror.Respond(c, billing.Internal("failed to sync plans", err))
		return
	}
	h.logger.Info("plan catalog synced", zap.Int("plans", len(entries)))
	c.JSON(http.StatusOK, gin.H{
		"synced": len(entries),
		"plans":  toPlanResponses(entries),
	})
}
