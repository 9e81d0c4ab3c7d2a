package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/constructa/propostas/internal/audit"
	"github.com/constructa/propostas/internal/auth"
	"github.com/constructa/propostas/internal/dashboard"
	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/mail"
	"github.com/constructa/propostas/internal/platform/mailer"
	"github.com/constructa/propostas/internal/platform/storage"
	"github.com/constructa/propostas/internal/products"
	"github.com/constructa/propostas/internal/proposals"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/rbac"
	"github.com/constructa/propostas/internal/reports"
	"github.com/constructa/propostas/internal/shared"
	"github.com/constructa/propostas/internal/users"
	"github.com/constructa/propostas/internal/view"
	"github.com/constructa/propostas/report"
)

// Services holds the domain services shared by the API server and the worker.
type Services struct {
	RBAC        *rbac.Service
	Auth        *auth.Service
	Users       *users.Service
	Products    *products.Service
	Freight     *freight.Service
	Quotes      *quotes.Service
	Proposals   *proposals.Service
	Dashboard   *dashboard.Service
	Reports     *reports.Service
	Composer    *mail.Composer
	Sender      mailer.Sender
	Idempotency *shared.IdempotencyStore
	Gotenberg   *report.Client
	Templates   *view.Engine
	Cache       *dashboard.Cache
	Audit       *audit.Service
}

// ServiceDeps are the process-level resources services are built from.
type ServiceDeps struct {
	Config *Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	// Dispatcher queues proposal mail; nil sends inline.
	Dispatcher proposals.Dispatcher
	// Sender overrides the SMTP relay, e.g. with mailer.Memory in tests.
	Sender mailer.Sender
	// Store overrides the configured document storage.
	Store storage.Store
}

// NewServices wires repositories and services.
func NewServices(d ServiceDeps) (*Services, error) {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := view.NewEngine()
	if err != nil {
		return nil, err
	}
	store := d.Store
	if store == nil {
		store, err = storage.New(storage.Options{
			Driver:      cfg.StorageDriver,
			Dir:         cfg.StorageDir,
			SupabaseURL: cfg.SupabaseURL,
			ServiceKey:  cfg.SupabaseServiceKey,
			Bucket:      cfg.SupabaseBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
	}
	sender := d.Sender
	if sender == nil {
		sender = mailer.NewSMTP(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			TLSMode:  strings.ToLower(cfg.SMTPTLSMode),
		})
	}

	gotenberg := report.NewClient(cfg.GotenbergURL)
	renderer, err := proposals.NewRenderer(strings.ToLower(cfg.PDFRenderer), templates, gotenberg)
	if err != nil {
		return nil, err
	}

	auditLog := shared.NewAuditLogger(d.Pool)
	rbacService := rbac.NewService()
	cache := dashboard.NewCache(d.Redis, cfg.DashboardCacheTTL, logger)

	userRepo := users.NewRepository(d.Pool)
	productService := products.NewService(products.NewRepository(d.Pool), auditLog)
	freightService := freight.NewService(freight.NewRepository(d.Pool), auditLog)
	quoteRepo := quotes.NewRepository(d.Pool)
	quoteService := quotes.NewService(quoteRepo, productService, freightService, auditLog,
		quotes.WithNotifier(cache),
		quotes.WithValidityDays(cfg.ProposalValidityDays),
	)
	composer := mail.NewComposer(templates, cfg.CompanyName)

	proposalService := proposals.NewService(proposals.Deps{
		Repo:       proposals.NewRepository(d.Pool),
		Quotes:     quoteRepo,
		Renderer:   renderer,
		Store:      store,
		Signer:     proposals.NewSigner(cfg.TokenSecret),
		Composer:   composer,
		Sender:     sender,
		Dispatcher: d.Dispatcher,
		Notifier:   cache,
		Audit:      auditLog,
		Logger:     logger,
	}, proposals.Config{
		CompanyName:   cfg.CompanyName,
		PublicBaseURL: cfg.PublicBaseURL,
		ValidityDays:  cfg.ProposalValidityDays,
	})

	return &Services{
		RBAC:        rbacService,
		Auth:        auth.NewService(userRepo, auth.NewRepository(d.Pool), rbacService, auth.NewTokenVerifier(cfg.AuthJWTSecret)),
		Users:       users.NewService(userRepo, auditLog),
		Products:    productService,
		Freight:     freightService,
		Quotes:      quoteService,
		Proposals:   proposalService,
		Dashboard:   dashboard.NewService(dashboard.NewRepository(d.Pool), cache),
		Reports:     reports.NewService(quoteService),
		Composer:    composer,
		Sender:      sender,
		Idempotency: shared.NewIdempotencyStore(d.Pool),
		Gotenberg:   gotenberg,
		Templates:   templates,
		Cache:       cache,
		Audit:       audit.NewService(audit.NewRepository(d.Pool)),
	}, nil
}
