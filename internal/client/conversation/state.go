// Package conversation drives one live voice call from microphone permission
// to the stored record. Reduce is the whole state machine as a pure function
// over events; Controller feeds it events and carries out its commands.
package conversation

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/client/api"
	"github.com/dmitrijs2005/taxvoice/internal/common"
)

type State int

const (
	StateIdle State = iota
	StateRequestingPermission
	StateBlocked
	StateReady
	StateConnecting
	StateActive
	StateEnding
	StateSummarizing
	StateSaved
	StateSaveFailed
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateRequestingPermission: "requesting_permission",
	StateBlocked:              "blocked",
	StateReady:                "ready",
	StateConnecting:           "connecting",
	StateActive:               "active",
	StateEnding:               "ending",
	StateSummarizing:          "summarizing",
	StateSaved:                "saved",
	StateSaveFailed:           "save_failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Transcript line prefixes.
const (
	PrefixAgent = "Assistant: "
	PrefixUser  = "You: "
)

const lineSeparator = "\n\n"

type EndReason string

const (
	EndByUser       EndReason = "user"
	EndByQuota      EndReason = "quota_exhausted"
	EndByDisconnect EndReason = "disconnected"
	EndByDevice     EndReason = "device_changed"
)

// Options are fixed for the lifetime of a controller.
type Options struct {
	// StartFloor is the least number of seconds a configured quota must hold
	// for a call to start.
	StartFloor int64
	// Language is the agent language code, empty for the agent default.
	Language string
	// Greeting, when set, is recorded as the first agent line of every call.
	Greeting string
}

// Snapshot is the complete controller state. Lines is append-only for the
// duration of a call.
type Snapshot struct {
	Options Options

	State             State
	Session           uint64
	PermissionGranted bool
	Muted             bool

	Lines     []string
	Summary   string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  int64
	EndReason EndReason

	// Restart is set when a device switch ended the call; a new call starts
	// on the new device once this one is stored.
	Restart    bool
	Unmetered  bool
	Remaining  *int64
	lastTickAt time.Time

	Conversation *api.Conversation
	// QuotaExceeded is set when Conversation, or Previous after a device
	// switch, was stored with no call time left.
	QuotaExceeded bool
	// Previous is the record stored by a call a device switch ended.
	Previous *api.Conversation

	// Err is the last error surfaced to the user.
	Err error
}

// Transcript joins the lines into the stored transcript text.
func (s Snapshot) Transcript() string {
	return strings.Join(s.Lines, lineSeparator)
}

// CanRetry reports whether RetrySave would resubmit the call.
func (s Snapshot) CanRetry() bool {
	return s.State == StateSaveFailed && len(s.Lines) > 0
}

func (s Snapshot) clone() Snapshot {
	s.Lines = append([]string(nil), s.Lines...)
	if s.Remaining != nil {
		v := *s.Remaining
		s.Remaining = &v
	}
	return s
}

func (s Snapshot) draft() api.Draft {
	start, end := s.StartedAt, s.EndedAt
	return api.Draft{
		Transcript: s.Transcript(),
		Summary:    s.Summary,
		Duration:   s.Duration,
		StartTime:  &start,
		EndTime:    &end,
		Status:     common.StatusCompleted,
	}
}
