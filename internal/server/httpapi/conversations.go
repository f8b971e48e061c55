package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/dmitrijs2005/taxvoice/internal/server/services"
	"github.com/dmitrijs2005/taxvoice/internal/server/summarizer"
	"github.com/go-chi/chi/v5"
)

type saveConversationRequest struct {
	Transcript string     `json:"transcript"`
	Summary    *string    `json:"summary"`
	Duration   *int64     `json:"duration"`
	StartTime  *time.Time `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	Status     *string    `json:"status"`
}

type conversationResponse struct {
	ID            string    `json:"id"`
	Transcript    string    `json:"transcript"`
	Summary       string    `json:"summary"`
	Duration      int64     `json:"duration"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	QuotaExceeded bool      `json:"quotaExceeded,omitempty"`
}

func fromModel(c *models.Conversation) conversationResponse {
	return conversationResponse{
		ID:         c.ID,
		Transcript: c.Transcript,
		Summary:    c.Summary,
		Duration:   c.Duration,
		StartTime:  c.StartTime,
		EndTime:    c.EndTime,
		Status:     c.Status,
		CreatedAt:  c.CreatedAt,
	}
}

type tickRequest struct {
	TickSeconds *int64 `json:"tickSeconds"`
}

type tickResponse struct {
	Success   bool  `json:"success"`
	Remaining int64 `json:"remaining"`
}

type shareResponse struct {
	URL string `json:"url"`
}

type summarizeRequest struct {
	Transcript string `json:"transcript"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

const defaultTickSeconds = 1

func (r *Router) handleSaveConversation(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())

	var body saveConversationRequest
	if !r.decodeJSON(w, req, &body, false) {
		return
	}

	res, err := r.svc.Conversations.Save(req.Context(), s.UserID, services.Draft{
		Transcript: body.Transcript,
		Summary:    body.Summary,
		Duration:   body.Duration,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
		Status:     body.Status,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}

	if res.QuotaExceeded {
		r.logger.Info(req.Context(), "conversation saved with exhausted quota", "user_id", s.UserID)
	}
	out := fromModel(res.Conversation)
	out.QuotaExceeded = res.QuotaExceeded
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleListConversations(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())

	list, err := r.svc.Conversations.List(req.Context(), s.UserID)
	if err != nil {
		r.writeError(w, req, err)
		return
	}

	out := make([]conversationResponse, 0, len(list))
	for i := range list {
		out = append(out, fromModel(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTick meters call time. An empty body ticks one second.
func (r *Router) handleTick(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())

	var body tickRequest
	if !r.decodeJSON(w, req, &body, true) {
		return
	}
	amount := int64(defaultTickSeconds)
	if body.TickSeconds != nil {
		amount = *body.TickSeconds
	}

	remaining, err := r.svc.Quota.Tick(req.Context(), s.UserID, amount)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, tickResponse{Success: true, Remaining: remaining})
}

func (r *Router) handleShare(w http.ResponseWriter, req *http.Request) {
	s, _ := sessionFrom(req.Context())

	link, err := r.svc.Conversations.Share(req.Context(), s.UserID, chi.URLParam(req, "id"))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{URL: link})
}

// handleSummarize never fails towards the caller once the request is
// authenticated: upstream trouble yields the fallback summary with 200.
func (r *Router) handleSummarize(w http.ResponseWriter, req *http.Request) {
	var body summarizeRequest
	if !r.decodeJSON(w, req, &body, true) {
		return
	}

	summary, outcome := summarizer.SummarizeOrFallback(req.Context(), r.svc.Summarizer, body.Transcript, r.logger)
	r.metrics.RecordSummary(outcome)
	writeJSON(w, http.StatusOK, summarizeResponse{Summary: summary})
}
