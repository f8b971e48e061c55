// Package voiceagent models the streaming speech agent a call talks to. The
// agent is a capability: it is started and ended, its output volume can be
// set, and it reports what happens on an event stream.
package voiceagent

import "context"

type EventType int

const (
	EventConnected EventType = iota + 1
	EventDisconnected
	EventTranscript
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventTranscript:
		return "transcript"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

// Event is one notification from the agent. Speaker and Text are set for
// EventTranscript, Err for EventError and for an unexpected EventDisconnected.
type Event struct {
	Type    EventType
	Speaker Speaker
	Text    string
	Err     error
}

// StartOptions tune one session.
type StartOptions struct {
	// Language is a two-letter code passed to the agent, empty for its default.
	Language string
	// FirstMessage overrides the agent's greeting.
	FirstMessage string
}

// Agent is the voice-agent collaborator. Start opens a session whose events
// arrive on Events until End. After End returns no further events of that
// session are delivered, and a session the agent closes on its own ends with
// EventDisconnected.
type Agent interface {
	Start(ctx context.Context, opts StartOptions) error
	End(ctx context.Context) error
	SetVolume(v float64) error
	Events() <-chan Event
}

// TextInput is implemented by agents that accept typed user turns.
type TextInput interface {
	SendText(ctx context.Context, text string) error
}
