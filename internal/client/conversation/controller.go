package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/client/api"
	"github.com/dmitrijs2005/taxvoice/internal/client/voiceagent"
	"github.com/dmitrijs2005/taxvoice/internal/logging"
)

const (
	DefaultTickInterval = 10 * time.Second
	DefaultStartFloor   = 10

	agentEndTimeout = 5 * time.Second
	inboxSize       = 16
)

var (
	ErrStopped        = errors.New("conversation controller stopped")
	ErrAlreadyRunning = errors.New("conversation controller already running")
)

// Backend is the part of the server API a call needs. *api.Client
// implements it.
type Backend interface {
	Quota(ctx context.Context) (*api.Quota, error)
	Tick(ctx context.Context, seconds int64) (int64, error)
	Summarize(ctx context.Context, transcript string) (string, error)
	SaveConversation(ctx context.Context, d api.Draft) (*api.Conversation, error)
}

// Permissions asks the environment for microphone access.
type Permissions interface {
	Request(ctx context.Context) error
}

type PermissionFunc func(ctx context.Context) error

func (f PermissionFunc) Request(ctx context.Context) error { return f(ctx) }

// Recorder is the local capture buffer running alongside a call.
type Recorder interface {
	Start() error
	Stop()
}

type Config struct {
	Options

	// TickInterval is how often elapsed call time is charged to the ledger.
	TickInterval time.Duration
	// OnChange, if set, is called from the event loop after every event
	// with a copy of the new state.
	OnChange func(Snapshot)
	Logger   logging.Logger
	Now      func() time.Time
}

// Controller runs one Reduce loop. Public methods only post events; all
// state changes and command execution happen on the goroutine inside Run.
type Controller struct {
	agent   voiceagent.Agent
	backend Backend
	perms   Permissions
	rec     Recorder
	cfg     Config
	log     logging.Logger

	inbox   chan Event
	done    chan struct{}
	running atomic.Bool

	mu   sync.Mutex
	snap Snapshot

	// owned by the Run goroutine
	tickStop chan struct{}
	wg       sync.WaitGroup
}

func New(agent voiceagent.Agent, backend Backend, perms Permissions, rec Recorder, cfg Config) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if perms == nil {
		perms = PermissionFunc(func(context.Context) error { return nil })
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Controller{
		agent:   agent,
		backend: backend,
		perms:   perms,
		rec:     rec,
		cfg:     cfg,
		log:     cfg.Logger.With("module", "conversation"),
		inbox:   make(chan Event, inboxSize),
		done:    make(chan struct{}),
		snap:    Snapshot{Options: cfg.Options},
	}
}

// Run drives the controller until ctx is cancelled. On return the ticker
// is stopped, a live agent session is ended and all background requests
// have finished.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)
	defer c.shutdown()

	events := c.agent.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.inbox:
			c.handle(ctx, ev)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handle(ctx, AgentEvent{At: c.cfg.Now(), Event: ev})
		}
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.clone()
}

// Mount asks for microphone access. It is the first call on a new controller.
func (c *Controller) Mount(ctx context.Context) error {
	return c.send(ctx, Mounted{})
}

func (c *Controller) Start(ctx context.Context) error {
	return c.send(ctx, StartRequested{At: c.cfg.Now()})
}

func (c *Controller) End(ctx context.Context) error {
	return c.send(ctx, EndRequested{At: c.cfg.Now()})
}

// SwitchDevice reports that the microphone or speaker changed.
func (c *Controller) SwitchDevice(ctx context.Context) error {
	return c.send(ctx, DeviceChanged{At: c.cfg.Now()})
}

func (c *Controller) RetrySave(ctx context.Context) error {
	return c.send(ctx, RetryRequested{})
}

// Close leaves the result view without waiting for a pending save.
func (c *Controller) Close(ctx context.Context) error {
	return c.send(ctx, CloseRequested{})
}

func (c *Controller) SetMuted(ctx context.Context, muted bool) error {
	return c.send(ctx, MuteRequested{Muted: muted})
}

// SendText sends a typed user turn to agents that accept one.
func (c *Controller) SendText(ctx context.Context, text string) error {
	in, ok := c.agent.(voiceagent.TextInput)
	if !ok {
		return errors.New("voice agent does not accept text input")
	}
	return in.SendText(ctx, text)
}

func (c *Controller) send(ctx context.Context, ev Event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.inbox <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers the result of background work back to the loop.
func (c *Controller) post(ctx context.Context, ev Event) {
	select {
	case c.inbox <- ev:
	case <-ctx.Done():
	}
}

func (c *Controller) handle(ctx context.Context, ev Event) {
	queue := []Event{ev}
	for len(queue) > 0 {
		ev, queue = queue[0], queue[1:]

		c.mu.Lock()
		prev := c.snap.State
		next, cmds := Reduce(c.snap, ev)
		c.snap = next
		view := next.clone()
		c.mu.Unlock()

		if next.State != prev {
			c.log.Debug(ctx, "state changed", "from", prev.String(), "to", next.State.String(), "session", next.Session)
		}
		if c.cfg.OnChange != nil {
			c.cfg.OnChange(view)
		}

		for _, cmd := range cmds {
			if follow := c.exec(ctx, cmd); follow != nil {
				queue = append(queue, follow)
			}
		}
	}
}

// exec carries out cmd. Quick local commands run inline and may return an
// event to reduce next; network requests run in the background and post
// their result.
func (c *Controller) exec(ctx context.Context, cmd Command) Event {
	switch cmd := cmd.(type) {
	case RequestPermission:
		c.spawn(ctx, func(ctx context.Context) Event {
			return PermissionResolved{Err: c.perms.Request(ctx)}
		})

	case CheckQuota:
		c.spawn(ctx, func(ctx context.Context) Event {
			q, err := c.backend.Quota(ctx)
			return QuotaChecked{Session: cmd.Session, Quota: q, Err: err}
		})

	case StartAgent:
		err := c.agent.Start(ctx, cmd.Options)
		if err != nil {
			c.log.Warn(ctx, "voice agent start failed", "error", err)
		}
		return AgentStarted{Session: cmd.Session, At: c.cfg.Now(), Err: err}

	case EndAgent:
		c.endAgent(ctx)

	case StartRecording:
		if err := c.rec.Start(); err != nil {
			c.log.Warn(ctx, "recording start failed", "error", err)
		}

	case StopRecording:
		c.rec.Stop()

	case StartTicker:
		c.startTicker(ctx)

	case StopTicker:
		c.stopTicker()

	case Tick:
		c.spawn(ctx, func(ctx context.Context) Event {
			left, err := c.backend.Tick(ctx, cmd.Seconds)
			if err != nil {
				c.log.Debug(ctx, "quota tick failed", "seconds", cmd.Seconds, "error", err)
			}
			return TickResult{Session: cmd.Session, At: c.cfg.Now(), Remaining: left, Err: err}
		})

	case SetVolume:
		if err := c.agent.SetVolume(cmd.Volume); err != nil {
			c.log.Warn(ctx, "set volume failed", "error", err)
		}

	case Summarize:
		c.spawn(ctx, func(ctx context.Context) Event {
			summary, err := c.backend.Summarize(ctx, cmd.Transcript)
			if err != nil {
				c.log.Warn(ctx, "summarize failed", "error", err)
			}
			return Summarized{Session: cmd.Session, Summary: summary, Err: err}
		})

	case Save:
		c.spawn(ctx, func(ctx context.Context) Event {
			conv, err := c.backend.SaveConversation(ctx, cmd.Draft)
			if err != nil {
				c.log.Error(ctx, "save conversation failed", "error", err)
			}
			return SaveCompleted{Session: cmd.Session, Conversation: conv, Err: err}
		})
	}
	return nil
}

func (c *Controller) spawn(ctx context.Context, fn func(context.Context) Event) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.post(ctx, fn(ctx))
	}()
}

// endAgent is not bound to the run context so a cancelled controller still
// closes the session.
func (c *Controller) endAgent(ctx context.Context) {
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), agentEndTimeout)
	defer cancel()
	if err := c.agent.End(ectx); err != nil {
		c.log.Warn(ctx, "voice agent end failed", "error", err)
	}
}

func (c *Controller) startTicker(ctx context.Context) {
	if c.tickStop != nil {
		return
	}
	stop := make(chan struct{})
	c.tickStop = stop

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTicker(c.cfg.TickInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.post(ctx, TickDue{At: c.cfg.Now()})
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Controller) stopTicker() {
	if c.tickStop == nil {
		return
	}
	close(c.tickStop)
	c.tickStop = nil
}

func (c *Controller) shutdown() {
	c.stopTicker()

	c.mu.Lock()
	state := c.snap.State
	c.mu.Unlock()
	if state == StateActive || state == StateConnecting {
		c.rec.Stop()
		c.endAgent(context.Background())
	}

	c.wg.Wait()
}

type nopRecorder struct{}

func (nopRecorder) Start() error { return nil }
func (nopRecorder) Stop()        {}
