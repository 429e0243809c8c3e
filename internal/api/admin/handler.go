package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"saas-billing/internal/api/apierror"
	"saas-billing/internal/domain/billing"
	"saas-billing/internal/jobs"
	"saas-billing/internal/repository"
)

const revenueWindow = 30 * 24 * time.Hour

type Stats interface {
	Summary(ctx context.Context, since time.Time) (*repository.BillingSummary, error)
}

type Reconciler interface {
	Run(ctx context.Context) (jobs.Report, error)
}

type Handler struct {
	stats      Stats
	reconciler Reconciler
	now        func() time.Time
}

func NewHandler(stats Stats, reconciler Reconciler) *Handler {
	return &Handler{stats: stats, reconciler: reconciler, now: time.Now}
}

type AdminStats struct {
	UsersPerPlan           map[string]int64 `json:"usersPerPlan"`
	SubscriptionsPerStatus map[string]int64 `json:"subscriptionsPerStatus"`
	RecentRevenue          map[string]int64 `json:"recentRevenue"`
	Since                  time.Time        `json:"since"`
}

func (h *Handler) GetAdminStats(c *gin.Context) {
	since := h.now().Add(-revenueWindow).UTC()
	s, err := h.stats.Summary(c.Request.Context(), since)
	if err != nil {
		apierror.Respond(c, billing.Internal("failed to load stats", err))
		return
	}

	c.JSON(http.StatusOK, AdminStats{
		UsersPerPlan:           s.UsersPerPlan,
		SubscriptionsPerStatus: s.SubscriptionsPerStatus,
		RecentRevenue:          s.RevenueSince,
		Since:                  since,
	})
}

// RunReconciliation runs one reconciliation sweep now, outside the schedule.
func (h *Handler) RunReconciliation(c *gin.Context) {
	report, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		apierror.Respond(c, billing.Internal("reconciliation failed", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checked":   report.Checked,
		"corrected": report.Corrected,
		"failed":    report.Failed,
	})
}
