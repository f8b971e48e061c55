package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/taxvoice/internal/common"
)

type errorResponse struct {
	Error     string `json:"error"`
	Remaining *int64 `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidPayload),
		errors.Is(err, common.ErrTokenReplayed):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrEmptyTranscript),
		errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrQuotaExhausted),
		errors.Is(err, common.ErrNoQuotaConfigured),
		errors.Is(err, common.ErrQuotaBelowFloor):
		return http.StatusForbidden
	case errors.Is(err, common.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, common.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what the client sees. Validation messages are ours and
// safe to pass through; everything else is reduced to a generic text.
func publicMessage(err error, status int) string {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return err.Error()
	case errors.Is(err, common.ErrEmptyTranscript):
		return "transcript must not be empty"
	case errors.Is(err, common.ErrorAlreadyExists):
		return "user already exists"
	case errors.Is(err, common.ErrQuotaExhausted):
		return "call quota exhausted"
	case errors.Is(err, common.ErrNoQuotaConfigured):
		return "no call quota configured"
	case errors.Is(err, common.ErrQuotaBelowFloor):
		return "not enough call time remaining"
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusNotFound:
		return "not found"
	default:
		return http.StatusText(status)
	}
}

func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: publicMessage(err, status)}

	var qe *common.QuotaError
	if errors.As(err, &qe) {
		remaining := qe.Remaining
		resp.Remaining = &remaining
	}

	args := []any{"path", req.URL.Path, "status", status, "error", err}
	if s, ok := sessionFrom(req.Context()); ok {
		args = append(args, "user_id", s.UserID)
	}
	if status >= http.StatusInternalServerError {
		r.logger.Error(req.Context(), "request failed", args...)
	} else {
		r.logger.Warn(req.Context(), "request rejected", args...)
	}

	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched when
// allowEmpty is set.
func (r *Router) decodeJSON(w http.ResponseWriter, req *http.Request, v any, allowEmpty bool) bool {
	if r.opts.MaxRequestBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxRequestBytes)
	}
	err := json.NewDecoder(req.Body).Decode(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && allowEmpty:
		return true
	case errors.Is(err, io.EOF):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty body"})
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request entity too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
	}
	return false
}
