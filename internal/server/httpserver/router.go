// Package httpserver is the HTTP surface of the account service: the
// session-cookie web routes, the /api/v1 routes guarded by the configured
// auth.Identifier, and /metrics.
package httpserver

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// AccountService is the subset of services.AccountService used by handlers.
type AccountService interface {
	Register(ctx context.Context, email, password string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) bool
	CreateSession(ctx context.Context, email string) (string, bool)
	ResolveSession(ctx context.Context, token string) (*models.Account, bool)
	EndSession(ctx context.Context, accountID int64)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConsumePasswordReset(ctx context.Context, token, newPassword string) error
}

// Options configures NewRouter.
type Options struct {
	Accounts       AccountService
	Identifier     auth.Identifier
	CookieName     string
	SecretKey      []byte
	AllowedOrigins []string
	Metrics        http.Handler
	Logger         logging.Logger
}

type handlers struct {
	accounts   AccountService
	identifier auth.Identifier
	cookieName string
	secret     []byte
	logger     logging.Logger
}

// NewRouter builds the chi router with every route.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Identifier == nil {
		opts.Identifier = auth.NoAuth{}
	}
	h := &handlers{
		accounts:   opts.Accounts,
		identifier: opts.Identifier,
		cookieName: opts.CookieName,
		secret:     opts.SecretKey,
		logger:     opts.Logger.With("module", "http_server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", h.welcome)
	r.Post("/users", h.registerUser)
	r.Post("/sessions", h.login)
	r.Delete("/sessions", h.logout)
	r.Get("/profile", h.profile)
	r.Post("/reset_password", h.requestReset)
	r.Put("/reset_password", h.updatePassword)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	// credentials only go to origins named explicitly
	credentials := !slices.Contains(allowed, "*")

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowed,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: credentials,
			MaxAge:           int((10 * time.Minute).Seconds()),
		}))
		r.Use(h.requireAuth)

		r.Get("/status", h.status)
		r.Get("/unauthorized", func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
		})
		r.Get("/forbidden", func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusForbidden, "Forbidden")
		})
		r.Get("/users/me", h.me)
		r.Post("/auth_session/login", h.apiLogin)
		r.Delete("/auth_session/logout", h.apiLogout)
	})

	return r
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
