package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/server/auth"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const sessionKey ctxKey = "session"

func withSession(ctx context.Context, s *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func sessionFrom(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*auth.Session)
	return s, ok && s != nil
}

func (r *Router) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := req.URL.Path
		if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		r.metrics.RecordRequest(req.Method, route, status, elapsed)
		r.logger.Info(req.Context(), "request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"duration", elapsed.String(),
			"request_id", middleware.GetReqID(req.Context()),
		)
	})
}

func (r *Router) sessionFromCookie(req *http.Request) (*auth.Session, bool) {
	c, err := req.Cookie(common.SessionCookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	s, err := r.svc.Users.ParseSession(c.Value)
	if err != nil {
		return nil, false
	}
	return s, true
}

// sessionMiddleware gates JSON endpoints on a valid session cookie.
func (r *Router) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s, ok := r.sessionFromCookie(req)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, req.WithContext(withSession(req.Context(), s)))
	})
}

// pageMiddleware runs in front of page requests. A one-time token in the
// query is exchanged for a session cookie and the browser is sent back to
// the same URL without it. Without a token the request needs a session.
func (r *Router) pageMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if token := q.Get(common.LoginTokenParam); token != "" {
			_, cookie, err := r.svc.Tokens.Exchange(req.Context(), token)
			if err != nil {
				r.logger.Warn(req.Context(), "token handover rejected", "path", req.URL.Path, "error", err)
				http.Redirect(w, req, r.opts.LoginPath, http.StatusSeeOther)
				return
			}
			r.setSessionCookie(w, cookie)

			q.Del(common.LoginTokenParam)
			target := url.URL{Path: req.URL.Path, RawQuery: q.Encode()}
			http.Redirect(w, req, target.String(), http.StatusSeeOther)
			return
		}

		s, ok := r.sessionFromCookie(req)
		if !ok {
			http.Redirect(w, req, r.unauthenticatedTarget(), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, req.WithContext(withSession(req.Context(), s)))
	})
}

func (r *Router) unauthenticatedTarget() string {
	if r.opts.AuthMode == config.AuthModeExternal {
		return r.opts.ExternalDashboardURL
	}
	return r.opts.LoginPath
}

func (r *Router) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(r.svc.Users.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   r.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
