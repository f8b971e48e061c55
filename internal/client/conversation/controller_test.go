package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/taxvoice/internal/client/api"
	"github.com/dmitrijs2005/taxvoice/internal/client/voiceagent"
	"github.com/dmitrijs2005/taxvoice/internal/common"
)

type fakeAgent struct {
	mu       sync.Mutex
	events   chan voiceagent.Event
	starts   []voiceagent.StartOptions
	ends     int
	volumes  []float64
	texts    []string
	startErr error
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{events: make(chan voiceagent.Event, 16)}
}

func (a *fakeAgent) Start(_ context.Context, opts voiceagent.StartOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.starts = append(a.starts, opts)
	if a.startErr != nil {
		return a.startErr
	}
	a.events <- voiceagent.Event{Type: voiceagent.EventConnected}
	return nil
}

func (a *fakeAgent) End(context.Context) error {
	a.mu.Lock()
	a.ends++
	a.mu.Unlock()
	return nil
}

func (a *fakeAgent) SetVolume(v float64) error {
	a.mu.Lock()
	a.volumes = append(a.volumes, v)
	a.mu.Unlock()
	return nil
}

func (a *fakeAgent) SendText(_ context.Context, text string) error {
	a.mu.Lock()
	a.texts = append(a.texts, text)
	a.mu.Unlock()
	return nil
}

func (a *fakeAgent) Events() <-chan voiceagent.Event { return a.events }

func (a *fakeAgent) say(who voiceagent.Speaker, text string) {
	a.events <- voiceagent.Event{Type: voiceagent.EventTranscript, Speaker: who, Text: text}
}

func (a *fakeAgent) counts() (starts, ends int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.starts), a.ends
}

type fakeBackend struct {
	mu sync.Mutex

	quota    *api.Quota
	quotaErr error
	tickErr  error
	ticks    []int64

	summary      string
	summarizeErr error
	summaries    int

	saveErrs  []error
	saveGate  chan struct{}
	saved     []api.Draft
	saveCalls int
}

func (b *fakeBackend) Quota(context.Context) (*api.Quota, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quota, b.quotaErr
}

func (b *fakeBackend) Tick(_ context.Context, seconds int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ticks = append(b.ticks, seconds)
	if b.tickErr != nil {
		return 0, b.tickErr
	}
	if b.quota == nil {
		return 0, common.ErrNoQuotaConfigured
	}
	b.quota.Remaining = max(0, b.quota.Remaining-seconds)
	return b.quota.Remaining, nil
}

func (b *fakeBackend) Summarize(context.Context, string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summaries++
	return b.summary, b.summarizeErr
}

func (b *fakeBackend) SaveConversation(ctx context.Context, d api.Draft) (*api.Conversation, error) {
	b.mu.Lock()
	b.saveCalls++
	gate := b.saveGate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.saveErrs) > 0 {
		err := b.saveErrs[0]
		b.saveErrs = b.saveErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	b.saved = append(b.saved, d)
	return &api.Conversation{ID: "conv-1", Transcript: d.Transcript, Summary: d.Summary, Status: d.Status}, nil
}

func (b *fakeBackend) savedDrafts() []api.Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.Draft(nil), b.saved...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	c       *Controller
	agent   *fakeAgent
	backend *fakeBackend
	rec     *MemoryRecorder
	clock   *fakeClock
}

func newHarness(t *testing.T, backend *fakeBackend, perms Permissions, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		agent:   newFakeAgent(),
		backend: backend,
		rec:     &MemoryRecorder{},
		clock:   &fakeClock{now: t0},
	}
	cfg := Config{
		Options:      Options{StartFloor: DefaultStartFloor, Language: "en"},
		TickInterval: time.Hour,
		Now:          h.clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h.c = New(h.agent, backend, perms, h.rec, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("controller did not stop")
		}
	})
	return h
}

func (h *harness) waitFor(t *testing.T, msg string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.c.Snapshot()) }, 2*time.Second, 2*time.Millisecond, msg)
	return h.c.Snapshot()
}

func (h *harness) waitState(t *testing.T, want State) Snapshot {
	t.Helper()
	return h.waitFor(t, "state "+want.String(), func(s Snapshot) bool { return s.State == want })
}

// activate mounts, starts a call and waits until the agent is connected.
func (h *harness) activate(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.c.Mount(ctx))
	h.waitState(t, StateReady)
	require.NoError(t, h.c.Start(ctx))
	h.waitState(t, StateActive)
}

func (h *harness) converse(t *testing.T, lines int) {
	t.Helper()
	h.agent.say(voiceagent.SpeakerUser, "What can I deduct as a freelancer?")
	h.agent.say(voiceagent.SpeakerAgent, "Business expenses such as equipment and software.")
	h.waitFor(t, "transcript", func(s Snapshot) bool { return len(s.Lines) == lines })
}

func TestController_HappyPath(t *testing.T) {
	backend := &fakeBackend{quota: metered(600), summary: "Freelancer deductions."}
	h := newHarness(t, backend, nil)

	h.activate(t)
	assert.True(t, h.rec.Recording())
	h.converse(t, 2)

	h.clock.Advance(42 * time.Second)
	require.NoError(t, h.c.End(context.Background()))
	s := h.waitState(t, StateSaved)

	drafts := backend.savedDrafts()
	require.Len(t, drafts, 1)
	assert.Equal(t, "You: What can I deduct as a freelancer?\n\nAssistant: Business expenses such as equipment and software.", drafts[0].Transcript)
	assert.Equal(t, "Freelancer deductions.", drafts[0].Summary)
	assert.Equal(t, int64(42), drafts[0].Duration)
	assert.Equal(t, common.StatusCompleted, drafts[0].Status)
	assert.Equal(t, "conv-1", s.Conversation.ID)

	starts, ends := h.agent.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
	h.agent.mu.Lock()
	assert.Equal(t, "en", h.agent.starts[0].Language)
	h.agent.mu.Unlock()
	assert.False(t, h.rec.Recording())

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.ticks) == 1 && backend.ticks[0] == 42
	}, 2*time.Second, 2*time.Millisecond, "remainder is charged at the end")
}

func TestController_SummarizerFailureStillSaves(t *testing.T) {
	backend := &fakeBackend{quota: metered(600), summarizeErr: common.ErrTimeout}
	h := newHarness(t, backend, nil)

	h.activate(t)
	h.converse(t, 2)
	require.NoError(t, h.c.End(context.Background()))
	h.waitState(t, StateSaved)

	drafts := backend.savedDrafts()
	require.Len(t, drafts, 1)
	assert.Equal(t, common.SummaryFailed, drafts[0].Summary)
	assert.Equal(t, common.StatusCompleted, drafts[0].Status)
}

func TestController_StartBelowFloorIsRejected(t *testing.T) {
	backend := &fakeBackend{quota: metered(5)}
	h := newHarness(t, backend, nil)

	require.NoError(t, h.c.Mount(context.Background()))
	h.waitState(t, StateReady)
	require.NoError(t, h.c.Start(context.Background()))

	s := h.waitFor(t, "quota refusal", func(s Snapshot) bool { return s.State == StateReady && s.Err != nil })
	assert.ErrorIs(t, s.Err, common.ErrQuotaBelowFloor)
	assert.Empty(t, s.Lines)
	starts, _ := h.agent.counts()
	assert.Zero(t, starts)
	assert.False(t, h.rec.Recording())
}

func TestController_ExhaustionEndsCall(t *testing.T) {
	backend := &fakeBackend{
		quota:   metered(600),
		tickErr: &common.QuotaError{Kind: common.ErrQuotaExhausted},
		summary: "short call",
	}
	h := newHarness(t, backend, nil, func(c *Config) { c.TickInterval = 5 * time.Millisecond })

	h.activate(t)
	h.converse(t, 2)
	h.clock.Advance(5 * time.Second)

	s := h.waitState(t, StateSaved)
	assert.Equal(t, EndByQuota, s.EndReason)
	assert.Equal(t, int64(0), *s.Remaining)
	assert.Len(t, backend.savedDrafts(), 1)
	_, ends := h.agent.counts()
	assert.Equal(t, 1, ends)
}

func TestController_DeviceSwitchRestartsCall(t *testing.T) {
	backend := &fakeBackend{quota: metered(600), summary: "first part"}
	h := newHarness(t, backend, nil)

	h.activate(t)
	h.converse(t, 2)
	require.NoError(t, h.c.SwitchDevice(context.Background()))

	s := h.waitFor(t, "restarted call", func(s Snapshot) bool { return s.State == StateActive && s.Session == 2 })
	require.NotNil(t, s.Previous)
	assert.Equal(t, "conv-1", s.Previous.ID)
	assert.Empty(t, s.Lines)
	assert.Len(t, backend.savedDrafts(), 1)

	starts, ends := h.agent.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, ends)
}

func TestController_CloseDiscardsLateSave(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{quota: metered(600), summary: "s", saveGate: gate}
	h := newHarness(t, backend, nil)

	h.activate(t)
	h.converse(t, 2)
	require.NoError(t, h.c.End(context.Background()))
	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.saveCalls == 1
	}, 2*time.Second, 2*time.Millisecond)

	require.NoError(t, h.c.Close(context.Background()))
	h.waitState(t, StateIdle)

	close(gate)
	require.Eventually(t, func() bool { return len(backend.savedDrafts()) == 1 }, 2*time.Second, 2*time.Millisecond)
	assert.Never(t, func() bool {
		s := h.c.Snapshot()
		return s.State != StateIdle || s.Conversation != nil
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestController_SaveFailureThenRetry(t *testing.T) {
	backend := &fakeBackend{quota: metered(600), summary: "s", saveErrs: []error{common.ErrUpstream}}
	h := newHarness(t, backend, nil)

	h.activate(t)
	h.converse(t, 2)
	require.NoError(t, h.c.End(context.Background()))

	s := h.waitState(t, StateSaveFailed)
	assert.ErrorIs(t, s.Err, common.ErrUpstream)
	assert.Len(t, s.Lines, 2)

	require.NoError(t, h.c.RetrySave(context.Background()))
	h.waitState(t, StateSaved)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 2, backend.saveCalls)
	assert.Equal(t, 1, backend.summaries, "retry reuses the summary")
}

func TestController_EmptyTranscriptIsNotSaved(t *testing.T) {
	backend := &fakeBackend{quota: metered(600)}
	h := newHarness(t, backend, nil)

	h.activate(t)
	require.NoError(t, h.c.End(context.Background()))
	s := h.waitState(t, StateSaveFailed)
	assert.ErrorIs(t, s.Err, common.ErrEmptyTranscript)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Zero(t, backend.summaries)
	assert.Zero(t, backend.saveCalls)
}

func TestController_PermissionDenied(t *testing.T) {
	denied := errors.New("no audio input device")
	h := newHarness(t, &fakeBackend{}, PermissionFunc(func(context.Context) error { return denied }))

	require.NoError(t, h.c.Mount(context.Background()))
	s := h.waitState(t, StateBlocked)
	assert.ErrorIs(t, s.Err, denied)
}

func TestController_AgentStartFailure(t *testing.T) {
	h := newHarness(t, &fakeBackend{quota: metered(600)}, nil)
	h.agent.startErr = errors.New("dial tcp: connection refused")

	require.NoError(t, h.c.Mount(context.Background()))
	h.waitState(t, StateReady)
	require.NoError(t, h.c.Start(context.Background()))

	s := h.waitFor(t, "start failure", func(s Snapshot) bool { return s.Err != nil })
	assert.Equal(t, StateReady, s.State)
	assert.ErrorIs(t, s.Err, common.ErrUpstream)
}

func TestController_MuteAndText(t *testing.T) {
	h := newHarness(t, &fakeBackend{quota: metered(600)}, nil)
	h.activate(t)

	require.NoError(t, h.c.SetMuted(context.Background(), true))
	h.waitFor(t, "muted", func(s Snapshot) bool { return s.Muted })
	require.Eventually(t, func() bool {
		h.agent.mu.Lock()
		defer h.agent.mu.Unlock()
		return len(h.agent.volumes) == 1 && h.agent.volumes[0] == 0
	}, 2*time.Second, 2*time.Millisecond)

	require.NoError(t, h.c.SendText(context.Background(), "hello"))
	h.agent.mu.Lock()
	assert.Equal(t, []string{"hello"}, h.agent.texts)
	h.agent.mu.Unlock()
}

func TestController_OnChangeSeesEveryState(t *testing.T) {
	var mu sync.Mutex
	var seen []State
	backend := &fakeBackend{quota: metered(600), summary: "s"}
	h := newHarness(t, backend, nil, func(c *Config) {
		c.OnChange = func(s Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			if len(seen) == 0 || seen[len(seen)-1] != s.State {
				seen = append(seen, s.State)
			}
		}
	})

	h.activate(t)
	h.converse(t, 2)
	require.NoError(t, h.c.End(context.Background()))
	h.waitState(t, StateSaved)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{
		StateRequestingPermission, StateReady, StateConnecting, StateActive, StateSummarizing, StateSaved,
	}, seen)
}

func TestController_RunLifecycle(t *testing.T) {
	agent := newFakeAgent()
	c := New(agent, &fakeBackend{quota: metered(600)}, nil, nil, Config{Options: Options{StartFloor: 10}})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	require.NoError(t, c.Mount(ctx))
	require.Eventually(t, func() bool { return c.Snapshot().State == StateReady }, 2*time.Second, 2*time.Millisecond)
	require.NoError(t, c.Start(ctx))
	require.Eventually(t, func() bool { return c.Snapshot().State == StateActive }, 2*time.Second, 2*time.Millisecond)
	assert.ErrorIs(t, c.Run(ctx), ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-errc)

	agent.mu.Lock()
	assert.Equal(t, 1, agent.ends, "a live session is ended on shutdown")
	agent.mu.Unlock()
	assert.ErrorIs(t, c.Start(context.Background()), ErrStopped)
}

func TestMemoryRecorder(t *testing.T) {
	r := &MemoryRecorder{Limit: 4}
	r.Write([]byte{1}, 1)
	assert.Empty(t, r.Bytes(), "nothing is kept while stopped")

	require.NoError(t, r.Start())
	r.Write([]byte{1, 2, 3}, 1)
	r.Write([]byte{4, 5}, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, r.Bytes())

	r.Stop()
	r.Write([]byte{6}, 1)
	assert.Equal(t, []byte{1, 2, 3, 4}, r.Bytes())

	require.NoError(t, r.Start())
	assert.Empty(t, r.Bytes())
}
