package voiceagent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultElevenLabsURL = "wss://api.elevenlabs.io/v1/convai/conversation"

var ErrNotStarted = errors.New("voice agent session not started")

type ElevenLabsConfig struct {
	AgentID string
	APIKey  string
	// BaseURL defaults to DefaultElevenLabsURL.
	BaseURL string
}

// AudioSink receives decoded agent audio while the volume is above zero.
type AudioSink func(pcm []byte, volume float64)

// ElevenLabs talks to the ElevenLabs Conversational AI websocket.
type ElevenLabs struct {
	cfg    ElevenLabsConfig
	dialer *websocket.Dialer
	events chan Event
	sink   AudioSink

	mu     sync.Mutex
	volume float64
	conn   *elevenLabsConn
}

type elevenLabsConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewElevenLabs(cfg ElevenLabsConfig, sink AudioSink) *ElevenLabs {
	return &ElevenLabs{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 64),
		sink:   sink,
		volume: 1,
	}
}

func (e *ElevenLabs) Events() <-chan Event { return e.events }

func (e *ElevenLabs) Start(ctx context.Context, opts StartOptions) error {
	if strings.TrimSpace(e.cfg.AgentID) == "" {
		return fmt.Errorf("elevenlabs agent id is required")
	}
	wsURL, err := buildConversationURL(e.cfg.BaseURL, e.cfg.AgentID)
	if err != nil {
		return err
	}

	header := http.Header{}
	if key := strings.TrimSpace(e.cfg.APIKey); key != "" {
		header.Set("xi-api-key", key)
	}

	ws, _, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial voice agent: %w", err)
	}
	c := &elevenLabsConn{ws: ws, closed: make(chan struct{}), done: make(chan struct{})}

	if err := c.writeJSON(ctx, initiationMessage(opts)); err != nil {
		_ = ws.Close()
		return fmt.Errorf("initiate conversation: %w", err)
	}

	e.mu.Lock()
	prev := e.conn
	e.conn = c
	e.mu.Unlock()
	if prev != nil {
		prev.close()
		<-prev.done
	}

	go e.readLoop(c)
	return nil
}

// End closes the current session and waits for its reader to stop.
func (e *ElevenLabs) End(ctx context.Context) error {
	e.mu.Lock()
	c := e.conn
	e.conn = nil
	e.mu.Unlock()
	if c == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.close()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetVolume sets the output volume in [0, 1]. Zero mutes agent audio.
func (e *ElevenLabs) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume %v out of range", v)
	}
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
	return nil
}

// SendText sends a typed user turn.
func (e *ElevenLabs) SendText(ctx context.Context, text string) error {
	e.mu.Lock()
	c := e.conn
	e.mu.Unlock()
	if c == nil {
		return ErrNotStarted
	}
	return c.writeJSON(ctx, map[string]any{"type": "user_message", "text": text})
}

func (e *ElevenLabs) currentVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

type serverMessage struct {
	Type string `json:"type"`

	Metadata *struct {
		ConversationID string `json:"conversation_id"`
	} `json:"conversation_initiation_metadata_event"`
	AgentResponse *struct {
		Text string `json:"agent_response"`
	} `json:"agent_response_event"`
	UserTranscript *struct {
		Text string `json:"user_transcript"`
	} `json:"user_transcription_event"`
	Audio *struct {
		Base64 string `json:"audio_base_64"`
	} `json:"audio_event"`
	Ping *struct {
		EventID int64 `json:"event_id"`
	} `json:"ping_event"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error_event"`
}

func (e *ElevenLabs) readLoop(c *elevenLabsConn) {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.close()
				e.emit(c, Event{Type: EventDisconnected, Err: disconnectReason(err)})
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "conversation_initiation_metadata":
			e.emit(c, Event{Type: EventConnected})
		case "agent_response":
			if msg.AgentResponse != nil && strings.TrimSpace(msg.AgentResponse.Text) != "" {
				e.emit(c, Event{Type: EventTranscript, Speaker: SpeakerAgent, Text: msg.AgentResponse.Text})
			}
		case "user_transcript":
			if msg.UserTranscript != nil && strings.TrimSpace(msg.UserTranscript.Text) != "" {
				e.emit(c, Event{Type: EventTranscript, Speaker: SpeakerUser, Text: msg.UserTranscript.Text})
			}
		case "audio":
			if msg.Audio == nil || e.sink == nil {
				continue
			}
			if v := e.currentVolume(); v > 0 {
				if pcm, err := base64.StdEncoding.DecodeString(msg.Audio.Base64); err == nil {
					e.sink(pcm, v)
				}
			}
		case "ping":
			if msg.Ping != nil {
				_ = c.writeJSON(context.Background(), map[string]any{"type": "pong", "event_id": msg.Ping.EventID})
			}
		case "error":
			text := "voice agent error"
			if msg.Error != nil && msg.Error.Message != "" {
				text = msg.Error.Message
			}
			e.emit(c, Event{Type: EventError, Err: errors.New(text)})
		}
	}
}

// emit delivers ev unless the session has been ended. An unexpected
// disconnect is delivered even though the connection is already closed.
func (e *ElevenLabs) emit(c *elevenLabsConn, ev Event) {
	if ev.Type == EventDisconnected {
		select {
		case e.events <- ev:
		case <-time.After(5 * time.Second):
		}
		return
	}
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case e.events <- ev:
	case <-c.closed:
	}
}

func (c *elevenLabsConn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (c *elevenLabsConn) writeJSON(ctx context.Context, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
	} else {
		_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	}
	return c.ws.WriteJSON(payload)
}

func initiationMessage(opts StartOptions) map[string]any {
	msg := map[string]any{"type": "conversation_initiation_client_data"}
	agent := map[string]any{}
	if opts.Language != "" {
		agent["language"] = opts.Language
	}
	if opts.FirstMessage != "" {
		agent["first_message"] = opts.FirstMessage
	}
	if len(agent) > 0 {
		msg["conversation_config_override"] = map[string]any{"agent": agent}
	}
	return msg
}

func disconnectReason(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		return nil
	}
	return err
}

func buildConversationURL(base, agentID string) (string, error) {
	if strings.TrimSpace(base) == "" {
		base = DefaultElevenLabsURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
