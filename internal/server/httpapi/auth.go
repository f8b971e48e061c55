package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taxvoice/internal/server/services"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	JobTitle string `json:"jobTitle"`
}

type registerResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	JobTitle string `json:"jobTitle"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenLoginRequest struct {
	Token string `json:"token"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body registerRequest
	if !r.decodeJSON(w, req, &body, false) {
		return
	}

	u, err := r.svc.Users.Register(req.Context(), services.RegisterInput{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		JobTitle: body.JobTitle,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}

	r.logger.Info(req.Context(), "Registered", "user_id", u.ID)
	writeJSON(w, http.StatusOK, registerResponse{ID: u.ID, Name: u.Name, Email: u.Email, JobTitle: u.JobTitle})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if !r.decodeJSON(w, req, &body, false) {
		return
	}

	_, token, err := r.svc.Users.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		r.writeError(w, req, err)
		return
	}

	r.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleTokenLogin is the JSON form of the token bridge. Every failure is
// the same 401 and sets no cookie.
func (r *Router) handleTokenLogin(w http.ResponseWriter, req *http.Request) {
	var body tokenLoginRequest
	if !r.decodeJSON(w, req, &body, false) {
		return
	}
	if body.Token == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	session, token, err := r.svc.Tokens.Exchange(req.Context(), body.Token)
	if err != nil {
		r.writeError(w, req, err)
		return
	}

	r.logger.Info(req.Context(), "token login", "user_id", session.UserID)
	r.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	r.clearSessionCookie(w)
	http.Redirect(w, req, r.unauthenticatedTarget(), http.StatusSeeOther)
}
