package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/constructa/propostas/internal/audit"
	"github.com/constructa/propostas/internal/auth"
	"github.com/constructa/propostas/internal/dashboard"
	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/mail"
	"github.com/constructa/propostas/internal/observability"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/products"
	"github.com/constructa/propostas/internal/proposals"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/reports"
	"github.com/constructa/propostas/internal/users"
	"github.com/constructa/propostas/jobs"
	"github.com/constructa/propostas/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthMiddleware auth.Middleware
	AuthHandler    *auth.Handler

	ProductsHandler    *products.Handler
	FreightHandler     *freight.Handler
	QuotesHandler      *quotes.Handler
	ProposalsHandler   *proposals.Handler
	DashboardHandler   *dashboard.Handler
	ReportsHandler     *reports.Handler
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.PermissionsHandler
	AuditHandler       *audit.Handler
	MailHandler        *mail.Handler

	ReportHandler *report.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
	// Ready reports backing service health for /healthz; nil always passes.
	Ready func(ctx context.Context) error
	// PublicRequestsPerMinute bounds acceptance-link traffic per IP; zero uses 30.
	PublicRequestsPerMinute int
}

// NewRouter constructs the chi.Router with the application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Ready(ctx); err != nil {
				params.Logger.Warn("readiness check failed", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}

	var origins []string
	if params.Config != nil {
		origins = params.Config.CORSAllowedOrigins
	}
	am := params.AuthMiddleware

	r.Route("/auth", func(r chi.Router) {
		r.Use(APICORS(origins), am.Session, am.Authenticate, am.CSRFProtect)
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(APICORS(origins), am.Session, am.Authenticate, am.RequireAuth, am.CSRFProtect)
		for _, h := range []interface{ MountRoutes(chi.Router) }{
			params.ProductsHandler,
			params.FreightHandler,
			params.QuotesHandler,
			params.ProposalsHandler,
			params.DashboardHandler,
			params.ReportsHandler,
			params.UsersHandler,
		} {
			h.MountRoutes(r)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
	})

	publicLimit := params.PublicRequestsPerMinute
	if publicLimit <= 0 {
		publicLimit = 30
	}
	r.Route("/public", func(r chi.Router) {
		r.Use(APICORS(origins), httprate.Limit(publicLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
			}),
		))
		params.ProposalsHandler.MountPublicRoutes(r)
	})

	if params.MailHandler != nil {
		r.Route("/functions", func(r chi.Router) {
			r.Use(mail.CORS(origins), am.Session, am.Authenticate, am.RequireAuth, am.CSRFProtect)
			params.MailHandler.MountRoutes(r)
		})
	}

	return r
}
