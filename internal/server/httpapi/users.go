package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/taxvoice/internal/server/services"
)

type meResponse struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	JobTitle   string  `json:"jobTitle"`
	Language   *string `json:"language"`
	QuickStart bool    `json:"quickStart"`
}

type languageRequest struct {
	Language string `json:"language"`
}

type languageResponse struct {
	Success  bool   `json:"success"`
	Language string `json:"language"`
}

type quotaResponse struct {
	Configured bool   `json:"configured"`
	Remaining  int64  `json:"remaining"`
	Level      string `json:"level"`
	CanStart   bool   `json:"canStart"`
	UpgradeURL string `json:"upgradeUrl"`
}

func quotaFromStanding(st services.Standing) quotaResponse {
	return quotaResponse{
		Configured: st.Configured,
		Remaining:  st.Remaining,
		Level:      st.Level,
		CanStart:   st.CanStart,
		UpgradeURL: st.UpgradeURL,
	}
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())

	u, err := r.svc.Users.Get(req.Context(), s.UserID)
	if err != nil {
		r.writeError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		JobTitle:   u.JobTitle,
		Language:   u.Language,
		QuickStart: u.Language == nil,
	})
}

// handleUpdateLanguage stores the preference and reissues the session
// cookie so the language claim follows it.
func (r *Router) handleUpdateLanguage(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())

	var body languageRequest
	if !r.decodeJSON(w, req, &body, false) {
		return
	}

	lang, err := r.svc.Users.UpdateLanguage(req.Context(), s.UserID, body.Language)
	if err != nil {
		r.writeError(w, req, err)
		return
	}

	if u, err := r.svc.Users.Get(req.Context(), s.UserID); err == nil {
		if _, token, err := r.svc.Users.IssueSession(u); err == nil {
			r.setSessionCookie(w, token)
		}
	}

	writeJSON(w, http.StatusOK, languageResponse{Success: true, Language: lang})
}

func (r *Router) handleQuota(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())

	st, err := r.svc.Quota.Standing(req.Context(), s.UserID)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaFromStanding(st))
}
