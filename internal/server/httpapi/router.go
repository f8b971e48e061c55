// Package httpapi exposes the taxvoice services over HTTP: JSON endpoints
// under a session cookie, the one-time token handover on page requests and
// the operational /health and /metrics endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/logging"
	"github.com/dmitrijs2005/taxvoice/internal/server/auth"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/dmitrijs2005/taxvoice/internal/server/metrics"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/dmitrijs2005/taxvoice/internal/server/services"
	"github.com/dmitrijs2005/taxvoice/internal/server/summarizer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Users interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*auth.Session, string, error)
	IssueSession(user *models.User) (*auth.Session, string, error)
	ParseSession(token string) (*auth.Session, error)
	SessionTTL() time.Duration
	Get(ctx context.Context, userID string) (*models.User, error)
	UpdateLanguage(ctx context.Context, userID, language string) (string, error)
}

type TokenExchanger interface {
	Exchange(ctx context.Context, oneTimeToken string) (*auth.Session, string, error)
}

type Quota interface {
	Tick(ctx context.Context, userID string, amount int64) (int64, error)
	Standing(ctx context.Context, userID string) (services.Standing, error)
}

type Conversations interface {
	Save(ctx context.Context, userID string, d services.Draft) (*services.SaveResult, error)
	List(ctx context.Context, userID string) ([]models.Conversation, error)
	Share(ctx context.Context, userID, conversationID string) (string, error)
}

// Services bundles the collaborators of the router. Summarizer may be nil,
// in which case /summarize always answers with the fallback summary.
type Services struct {
	Users         Users
	Tokens        TokenExchanger
	Quota         Quota
	Conversations Conversations
	Summarizer    summarizer.Summarizer
}

// Options are the deployment settings the handlers depend on.
type Options struct {
	CookieSecure         bool
	AuthMode             string
	LoginPath            string
	ExternalDashboardURL string
	MaxRequestBytes      int64
}

func OptionsFromConfig(c *config.Config) Options {
	return Options{
		CookieSecure:         c.CookieSecure,
		AuthMode:             c.AuthMode,
		LoginPath:            c.LoginPath,
		ExternalDashboardURL: c.ExternalDashboardURL,
		MaxRequestBytes:      1 << 20,
	}
}

type Router struct {
	svc     Services
	opts    Options
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewRouter(svc Services, opts Options, l logging.Logger, mt *metrics.Metrics) http.Handler {
	r := &Router{svc: svc, opts: opts, logger: l.With("module", "http_api"), metrics: mt}
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(r.accessLog)

	mux.Get("/health", r.handleHealth)
	if mt != nil {
		mux.Method(http.MethodGet, "/metrics", mt.Handler())
	}

	mux.Post("/auth/register", r.handleRegister)
	mux.Post("/auth/login", r.handleLogin)
	mux.Post("/auth/token-login", r.handleTokenLogin)
	mux.Post("/auth/logout", r.handleLogout)

	mux.Group(func(pr chi.Router) {
		pr.Use(r.pageMiddleware)
		pr.Get("/me", r.handleMe)
	})

	mux.Group(func(pr chi.Router) {
		pr.Use(r.sessionMiddleware)
		pr.Patch("/user/language", r.handleUpdateLanguage)
		pr.Get("/quota", r.handleQuota)
		pr.Post("/conversations", r.handleSaveConversation)
		pr.Get("/conversations", r.handleListConversations)
		pr.Post("/conversations/tick", r.handleTick)
		pr.Post("/conversations/{id}/share", r.handleShare)
		pr.Post("/summarize", r.handleSummarize)
	})

	return mux
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
