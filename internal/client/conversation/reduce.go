package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/client/voiceagent"
	"github.com/dmitrijs2005/taxvoice/internal/common"
)

// Reduce applies ev to s and returns the next state with the commands that
// carry it out. Events that do not apply to the current state are ignored.
func Reduce(s Snapshot, ev Event) (Snapshot, []Command) {
	switch e := ev.(type) {
	case Mounted:
		return onMounted(s)
	case PermissionResolved:
		return onPermission(s, e)
	case StartRequested:
		return onStart(s)
	case QuotaChecked:
		return onQuotaChecked(s, e)
	case AgentStarted:
		return onAgentStarted(s, e)
	case AgentEvent:
		return onAgentEvent(s, e)
	case EndRequested:
		return onEnd(s, e.At)
	case DeviceChanged:
		return onDeviceChanged(s, e.At)
	case TickDue:
		return onTickDue(s, e.At)
	case TickResult:
		return onTickResult(s, e)
	case Summarized:
		return onSummarized(s, e)
	case SaveCompleted:
		return onSaveCompleted(s, e)
	case RetryRequested:
		return onRetry(s)
	case CloseRequested:
		return onClose(s)
	case MuteRequested:
		return onMute(s, e.Muted)
	}
	return s, nil
}

func onMounted(s Snapshot) (Snapshot, []Command) {
	if s.State != StateIdle {
		return s, nil
	}
	if s.PermissionGranted {
		s.State = StateReady
		return s, nil
	}
	s.State = StateRequestingPermission
	return s, []Command{RequestPermission{}}
}

func onPermission(s Snapshot, e PermissionResolved) (Snapshot, []Command) {
	if s.State != StateRequestingPermission {
		return s, nil
	}
	if e.Err != nil {
		s.State = StateBlocked
		s.Err = e.Err
		return s, nil
	}
	s.PermissionGranted = true
	s.State = StateReady
	s.Err = nil
	return s, nil
}

func onStart(s Snapshot) (Snapshot, []Command) {
	ready := s.State == StateReady || (s.State == StateIdle && s.PermissionGranted)
	if !ready {
		return s, nil
	}
	return connect(s)
}

func connect(s Snapshot) (Snapshot, []Command) {
	s = resetCall(s)
	s.State = StateConnecting
	return s, []Command{CheckQuota{Session: s.Session}}
}

// resetCall clears everything that belongs to one call and opens a new
// session, so results still in flight for the old one are dropped.
func resetCall(s Snapshot) Snapshot {
	s.Session++
	s.Lines = nil
	s.Summary = ""
	s.StartedAt = time.Time{}
	s.EndedAt = time.Time{}
	s.Duration = 0
	s.EndReason = ""
	s.Restart = false
	s.Unmetered = false
	s.lastTickAt = time.Time{}
	s.Conversation = nil
	s.QuotaExceeded = false
	s.Previous = nil
	s.Err = nil
	return s
}

func onQuotaChecked(s Snapshot, e QuotaChecked) (Snapshot, []Command) {
	if e.Session != s.Session || s.State != StateConnecting {
		return s, nil
	}

	switch {
	case errors.Is(e.Err, common.ErrorUnauthorized):
		s.State = StateReady
		s.Err = e.Err
		return s, nil
	case e.Err != nil, e.Quota == nil:
		// A failed peek does not block the call; ticking meters it anyway.
	case !e.Quota.Configured:
		s.Unmetered = true
	default:
		v := e.Quota.Remaining
		s.Remaining = &v
		if v < s.Options.StartFloor {
			kind := common.ErrQuotaBelowFloor
			if v <= 0 {
				kind = common.ErrQuotaExhausted
			}
			s.State = StateReady
			s.Err = &common.QuotaError{Kind: kind, Remaining: v}
			return s, nil
		}
	}

	start := StartAgent{Session: s.Session, Options: voiceagent.StartOptions{
		Language:     s.Options.Language,
		FirstMessage: s.Options.Greeting,
	}}
	return s, []Command{start, StartRecording{}}
}

func onAgentStarted(s Snapshot, e AgentStarted) (Snapshot, []Command) {
	if e.Session != s.Session || s.State != StateConnecting || e.Err == nil {
		return s, nil
	}
	s.State = StateReady
	s.Err = fmt.Errorf("%w: %w", common.ErrUpstream, e.Err)
	return s, []Command{StopRecording{}}
}

func onAgentEvent(s Snapshot, e AgentEvent) (Snapshot, []Command) {
	switch e.Event.Type {
	case voiceagent.EventConnected:
		if s.State != StateConnecting {
			return s, nil
		}
		s.State = StateActive
		s.StartedAt = e.At
		s.lastTickAt = e.At
		if s.Options.Greeting != "" {
			s.Lines = append(s.Lines, PrefixAgent+s.Options.Greeting)
		}

		var cmds []Command
		if !s.Unmetered {
			cmds = append(cmds, StartTicker{})
		}
		if s.Muted {
			cmds = append(cmds, SetVolume{Volume: 0})
		}
		return s, cmds

	case voiceagent.EventTranscript:
		if s.State != StateActive || strings.TrimSpace(e.Event.Text) == "" {
			return s, nil
		}
		prefix := PrefixUser
		if e.Event.Speaker == voiceagent.SpeakerAgent {
			prefix = PrefixAgent
		}
		s.Lines = append(s.Lines, prefix+e.Event.Text)
		return s, nil

	case voiceagent.EventError:
		if s.State == StateActive || s.State == StateConnecting {
			s.Err = fmt.Errorf("%w: %w", common.ErrUpstream, e.Event.Err)
		}
		return s, nil

	case voiceagent.EventDisconnected:
		switch s.State {
		case StateActive:
			return finish(s, e.At, EndByDisconnect)
		case StateConnecting:
			s.State = StateReady
			s.Err = fmt.Errorf("%w: voice agent disconnected", common.ErrUpstream)
			return s, []Command{StopRecording{}}
		}
	}
	return s, nil
}

func onEnd(s Snapshot, at time.Time) (Snapshot, []Command) {
	switch s.State {
	case StateActive:
		return finish(s, at, EndByUser)
	case StateConnecting:
		s.State = StateReady
		return s, []Command{EndAgent{}, StopRecording{}}
	}
	return s, nil
}

// onDeviceChanged ends the call as if the user had, and starts a new one on
// the new device once it is stored. There is no live device hot-swap.
func onDeviceChanged(s Snapshot, at time.Time) (Snapshot, []Command) {
	if s.State != StateActive {
		return s, nil
	}
	s, cmds := finish(s, at, EndByDevice)
	if s.State == StateSaveFailed && errors.Is(s.Err, common.ErrEmptyTranscript) {
		next, more := connect(s)
		return next, append(cmds, more...)
	}
	s.Restart = true
	return s, cmds
}

func onTickDue(s Snapshot, at time.Time) (Snapshot, []Command) {
	if s.State != StateActive || s.Unmetered {
		return s, nil
	}
	if t, ok := s.meterTo(at); ok {
		return s, []Command{t}
	}
	return s, nil
}

// meterTo advances the metering mark to at by whole seconds and returns the
// tick for them.
func (s *Snapshot) meterTo(at time.Time) (Tick, bool) {
	if s.Unmetered || s.lastTickAt.IsZero() {
		return Tick{}, false
	}
	n := int64(at.Sub(s.lastTickAt) / time.Second)
	if n <= 0 {
		return Tick{}, false
	}
	s.lastTickAt = s.lastTickAt.Add(time.Duration(n) * time.Second)
	return Tick{Session: s.Session, Seconds: n}, true
}

func onTickResult(s Snapshot, e TickResult) (Snapshot, []Command) {
	if e.Session != s.Session {
		return s, nil
	}
	switch {
	case e.Err == nil:
		v := e.Remaining
		s.Remaining = &v
	case errors.Is(e.Err, common.ErrQuotaExhausted):
		zero := int64(0)
		s.Remaining = &zero
		if s.State == StateActive {
			s, cmds := finish(s, e.At, EndByQuota)
			if s.State != StateSaveFailed {
				s.Err = e.Err
			}
			return s, cmds
		}
	case errors.Is(e.Err, common.ErrNoQuotaConfigured):
		s.Unmetered = true
		s.Remaining = nil
		return s, []Command{StopTicker{}}
	}
	return s, nil
}

// finish ends the call: stop everything, charge the last partial interval
// and move on to summarizing. An empty transcript is a validation failure
// and nothing is saved.
func finish(s Snapshot, at time.Time, reason EndReason) (Snapshot, []Command) {
	cmds := []Command{StopTicker{}, StopRecording{}, EndAgent{}}
	if reason != EndByQuota {
		if t, ok := s.meterTo(at); ok {
			cmds = append(cmds, t)
		}
	}

	s.State = StateEnding
	s.EndReason = reason
	s.EndedAt = at
	if !s.StartedAt.IsZero() && at.After(s.StartedAt) {
		s.Duration = int64(at.Sub(s.StartedAt) / time.Second)
	}

	if len(s.Lines) == 0 {
		s.State = StateSaveFailed
		s.Err = common.ErrEmptyTranscript
		return s, cmds
	}

	s.State = StateSummarizing
	return s, append(cmds, Summarize{Session: s.Session, Transcript: s.Transcript()})
}

// onSummarized never fails the call: a summarizer error becomes the
// fallback summary.
func onSummarized(s Snapshot, e Summarized) (Snapshot, []Command) {
	if e.Session != s.Session || s.State != StateSummarizing || s.Summary != "" {
		return s, nil
	}
	s.Summary = e.Summary
	if e.Err != nil || strings.TrimSpace(e.Summary) == "" {
		s.Summary = common.SummaryFailed
	}
	return s, []Command{Save{Session: s.Session, Draft: s.draft()}}
}

func onSaveCompleted(s Snapshot, e SaveCompleted) (Snapshot, []Command) {
	if e.Session != s.Session || s.State != StateSummarizing {
		return s, nil
	}
	if e.Err != nil {
		s.State = StateSaveFailed
		s.Err = e.Err
		return s, nil
	}
	if s.Restart {
		s, cmds := connect(s)
		s.Previous = e.Conversation
		if e.Conversation != nil {
			s.QuotaExceeded = e.Conversation.QuotaExceeded
		}
		return s, cmds
	}
	s.State = StateSaved
	s.Err = nil
	s.Conversation = e.Conversation
	if e.Conversation != nil {
		s.QuotaExceeded = e.Conversation.QuotaExceeded
	}
	return s, nil
}

// onRetry resubmits the held call. The server has no dedup key, so a retry
// after a lost response stores a second record.
func onRetry(s Snapshot) (Snapshot, []Command) {
	if !s.CanRetry() {
		return s, nil
	}
	s.State = StateSummarizing
	s.Err = nil
	if s.Summary == "" {
		return s, []Command{Summarize{Session: s.Session, Transcript: s.Transcript()}}
	}
	return s, []Command{Save{Session: s.Session, Draft: s.draft()}}
}

// onClose drops the result view. A save still in flight is not awaited;
// its result is ignored because the session moves on.
func onClose(s Snapshot) (Snapshot, []Command) {
	switch s.State {
	case StateSaved, StateSaveFailed, StateSummarizing:
	default:
		return s, nil
	}
	s = resetCall(s)
	s.Remaining = nil
	s.State = StateIdle
	return s, nil
}

func onMute(s Snapshot, muted bool) (Snapshot, []Command) {
	if s.Muted == muted {
		return s, nil
	}
	s.Muted = muted
	if s.State != StateActive {
		return s, nil
	}
	v := 1.0
	if muted {
		v = 0
	}
	return s, []Command{SetVolume{Volume: v}}
}
