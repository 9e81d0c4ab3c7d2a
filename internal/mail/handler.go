package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/platform/mailer"
	"github.com/constructa/propostas/internal/shared"
)

// IdempotencyHeader lets clients retry a send without duplicating the email.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves the email function endpoints.
type Handler struct {
	logger   *slog.Logger
	composer *Composer
	sender   mailer.Sender
	idem     shared.IdempotencyGuard
}

func NewHandler(logger *slog.Logger, composer *Composer, sender mailer.Sender, idem shared.IdempotencyGuard) *Handler {
	return &Handler{logger: logger, composer: composer, sender: sender, idem: idem}
}

// CORS allows browser clients on origins to POST to the functions.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-CSRF-Token", IdempotencyHeader, "apikey", "x-client-info"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/send-proposal-email", h.sendProposal)
	r.Post("/send-quote-email", h.sendQuote)
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) sendProposal(w http.ResponseWriter, r *http.Request) {
	var p ProposalEmail
	if err := httpx.DecodeJSON(r, &p); err != nil {
		h.fail(w, err)
		return
	}
	h.send(w, r, "mail.proposal", func() (mailer.Message, error) { return h.composer.Proposal(p) })
}

func (h *Handler) sendQuote(w http.ResponseWriter, r *http.Request) {
	var q QuoteEmail
	if err := httpx.DecodeJSON(r, &q); err != nil {
		h.fail(w, err)
		return
	}
	h.send(w, r, "mail.quote", func() (mailer.Message, error) { return h.composer.Quote(q) })
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, module string, compose func() (mailer.Message, error)) {
	msg, err := compose()
	if err != nil {
		h.fail(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, module); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.JSON(w, http.StatusConflict, result{Success: false, Error: "duplicate request: email already sent"})
				return
			}
			h.logger.Error("idempotency check failed", slog.Any("error", err))
			h.fail(w, err)
			return
		}
	}

	if err := h.sender.Send(r.Context(), msg); err != nil {
		if key != "" && h.idem != nil {
			if derr := h.idem.Delete(context.WithoutCancel(r.Context()), key, module); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.logger.Error("send email failed", slog.String("module", module), slog.Any("error", err))
		if errors.Is(err, mailer.ErrInvalidMessage) {
			httpx.JSON(w, http.StatusBadRequest, result{Success: false, Error: err.Error()})
			return
		}
		httpx.JSON(w, http.StatusBadGateway, result{Success: false, Error: "failed to send email"})
		return
	}
	h.logger.Info("email sent", slog.String("module", module), slog.String("to", strings.Join(msg.To, ",")))
	httpx.JSON(w, http.StatusOK, result{Success: true, Message: "Email enviado com sucesso"})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, httpx.ErrValidation) {
		httpx.JSON(w, http.StatusBadRequest, result{Success: false, Error: err.Error()})
		return
	}
	httpx.JSON(w, http.StatusInternalServerError, result{Success: false, Error: "internal error"})
}
