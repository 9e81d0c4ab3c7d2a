package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/shared"
)

// Middleware attaches sessions and principals to requests.
type Middleware struct {
	Service  *Service
	Sessions *shared.SessionManager
	CSRF     *shared.CSRFManager
	Logger   *slog.Logger
}

// Session loads the cookie session into the request context and commits it
// once the handler returns. Handlers must not write the body before changing
// the session; Commit sets cookies through the header map.
func (m Middleware) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Sessions.Load(r.Context(), r)
		if err != nil {
			m.logError("load session", err)
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		ctx := shared.ContextWithSession(r.Context(), sess)
		cw := &commitWriter{ResponseWriter: w, commit: func() {
			if err := m.Sessions.Commit(ctx, w, sess); err != nil {
				m.logError("commit session", err)
			}
		}}
		next.ServeHTTP(cw, r.WithContext(ctx))
		cw.flushCommit()
	})
}

// Authenticate resolves the principal from a bearer token or the session. It
// does not reject anonymous requests.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if token, ok := bearerToken(r); ok {
			p, err := m.Service.BearerPrincipal(ctx, token)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(ctx, p)))
			return
		}
		if sess := shared.SessionFromContext(ctx); sess != nil && sess.User() != "" {
			p, err := m.Service.SessionPrincipal(ctx, sess.User())
			if err != nil {
				m.logError("session principal", err)
				m.Sessions.Destroy(sess)
			} else {
				ctx = shared.ContextWithPrincipal(ctx, p)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous requests with 401.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CSRFProtect guards unsafe methods for cookie-authenticated principals. Bearer
// requests are not subject to CSRF.
func (m Middleware) CSRFProtect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		p, ok := shared.PrincipalFromContext(r.Context())
		if !ok || p.Via != "session" {
			next.ServeHTTP(w, r)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		if err := m.CSRF.VerifyToken(sess, r.Header.Get(shared.CSRFHeader)); err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// commitWriter commits the session right before the first header write so the
// Set-Cookie header is not lost.
type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (c *commitWriter) flushCommit() {
	if !c.committed {
		c.committed = true
		c.commit()
	}
}

func (c *commitWriter) WriteHeader(status int) {
	c.flushCommit()
	c.ResponseWriter.WriteHeader(status)
}

func (c *commitWriter) Write(b []byte) (int, error) {
	c.flushCommit()
	return c.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (c *commitWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

// UserIDString formats a user id for session storage.
func UserIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}
