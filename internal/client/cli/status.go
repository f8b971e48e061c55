package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dmitrijs2005/taxvoice/internal/client/conversation"
	"github.com/dmitrijs2005/taxvoice/internal/common"
)

func (a *App) getStatus() string {
	if a.user == nil {
		return ""
	}
	s := a.user.Email
	if a.call != nil {
		s += " " + a.call.Snapshot().State.String()
	}
	return fmt.Sprintf("(%s)", s)
}

// renderer prints what changed between two controller snapshots.
type renderer struct {
	mu      sync.Mutex
	w       io.Writer
	state   conversation.State
	session uint64
	lines   int
	err     error
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, state: conversation.StateIdle}
}

func (r *renderer) update(s conversation.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Session != r.session {
		r.session = s.Session
		r.lines = 0
	}
	for _, line := range s.Lines[min(r.lines, len(s.Lines)):] {
		fmt.Fprintln(r.w, line)
	}
	r.lines = len(s.Lines)

	if s.State == r.state {
		if s.Err != nil && !errors.Is(s.Err, r.err) && s.State == conversation.StateActive {
			fmt.Fprintln(r.w, "Warning:", s.Err)
		}
		r.err = s.Err
		return
	}
	r.state, r.err = s.State, s.Err

	switch s.State {
	case conversation.StateRequestingPermission:
		fmt.Fprintln(r.w, "Checking input device...")
	case conversation.StateBlocked:
		fmt.Fprintln(r.w, "Input device unavailable:", s.Err)
	case conversation.StateReady:
		if s.Err != nil {
			fmt.Fprintln(r.w, "Cannot start the call:", describeErr(s.Err))
		} else {
			fmt.Fprintln(r.w, "Ready. Type 'start' to begin a call.")
		}
		if s.Previous != nil {
			fmt.Fprintln(r.w, "Saved conversation", s.Previous.ID)
		}
	case conversation.StateConnecting:
		if s.Previous != nil {
			fmt.Fprintf(r.w, "Saved conversation %s. Reconnecting on the new device...\n", s.Previous.ID)
			if s.QuotaExceeded {
				fmt.Fprintln(r.w, quotaUsedUp)
			}
		} else {
			fmt.Fprintln(r.w, "Connecting...")
		}
	case conversation.StateActive:
		fmt.Fprintln(r.w, "Call started. Type 'say <text>' to talk, 'end' to finish.")
	case conversation.StateSummarizing:
		fmt.Fprintf(r.w, "Call ended (%s, %ds). Summarizing...\n", s.EndReason, s.Duration)
	case conversation.StateSaved:
		fmt.Fprintln(r.w, "Summary:", s.Summary)
		if s.Conversation != nil {
			fmt.Fprintln(r.w, "Saved conversation", s.Conversation.ID)
		}
		if s.QuotaExceeded {
			fmt.Fprintln(r.w, quotaUsedUp)
		}
		fmt.Fprintln(r.w, "Type 'close' to start over.")
	case conversation.StateSaveFailed:
		if errors.Is(s.Err, common.ErrEmptyTranscript) {
			fmt.Fprintln(r.w, "Nothing was said, so there is nothing to save. Type 'close'.")
		} else {
			fmt.Fprintln(r.w, "Could not save the conversation:", describeErr(s.Err))
			fmt.Fprintln(r.w, "Type 'retry' to try again or 'close' to discard it.")
		}
	case conversation.StateIdle:
		fmt.Fprintln(r.w, "Closed. Type 'start' to begin a new call.")
	}
}

const quotaUsedUp = "Your call time is used up. Upgrade to keep talking."

func describeErr(err error) string {
	var qe *common.QuotaError
	switch {
	case errors.As(err, &qe) && errors.Is(err, common.ErrQuotaBelowFloor):
		return fmt.Sprintf("only %ds of call time left", qe.Remaining)
	case errors.Is(err, common.ErrQuotaExhausted):
		return "your call time is used up"
	case errors.Is(err, common.ErrorUnauthorized):
		return "session expired, please log in again"
	case errors.Is(err, common.ErrTimeout):
		return "the server did not answer in time"
	case err == nil:
		return ""
	}
	return strings.TrimSpace(err.Error())
}
