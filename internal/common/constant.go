package common

// SessionCookieName is the cookie carrying the signed session credential.
const SessionCookieName = "taxvoice.session-token"

// LoginTokenParam is the query parameter an external system uses to hand
// over a one-time login token on a page request.
const LoginTokenParam = "token"

// Sentinel summary values stored when no real summary exists.
const (
	SummaryNone         = "No summary available"
	SummaryNoTranscript = "No transcript available to summarize"
	SummaryFailed       = "Failed to generate summary due to AI service error. Please try again later."
)

// Conversation statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
