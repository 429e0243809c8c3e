package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	adminapi "saas-billing/internal/api/admin"
	billingapi "saas-billing/internal/api/billing"
	plansapi "saas-billing/internal/api/plans"
	stripewebhooks "saas-billing/internal/api/stripewebhook"
	usersapi "saas-billing/internal/api/users"
	"saas-billing/internal/app/http/middleware"
	"saas-billing/internal/metrics"
)

type Deps struct {
	Auth           *middleware.Authenticator
	Billing        *billingapi.Handler
	Plans          *plansapi.Handler
	Webhook        *stripewebhooks.Handler
	Users          *usersapi.Handler
	Admin          *adminapi.Handler
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestID(), d.Metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}

	v1 := r.Group("/api/v1")

	// signature-authenticated; the raw body must reach the verifier untouched
	v1.POST("/billing/webhook", d.Webhook.StripeWebhook)

	public := v1.Group("/")
	public.GET("/plans", d.Plans.ListPlans)

	// Authenticated
	v1.GET("/me", d.Auth.AuthMiddleware(), d.Users.GetCurrentUser)

	auth := v1.Group("/billing")
	auth.Use(d.Auth.AuthMiddleware(), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/subscription", d.Billing.GetSubscription)
	auth.PATCH("/subscription", d.Billing.ChangePlan)
	auth.DELETE("/subscription", d.Billing.CancelSubscription)
	auth.POST("/checkout", d.Billing.CreateCheckoutSession)
	auth.POST("/portal", d.Billing.CreateBillingPortal)
	auth.GET("/payments", d.Billing.GetPaymentHistory)

	// Admin routes
	admin := v1.Group("/admin")
	admin.Use(d.Auth.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.POST("/plans/sync", d.Plans.SyncPlansFromStripe)
	admin.GET("/billing/stats", d.Admin.GetAdminStats)
	admin.POST("/billing/reconcile", d.Admin.RunReconciliation)
}
