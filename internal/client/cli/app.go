package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/taxvoice/internal/client/api"
	"github.com/dmitrijs2005/taxvoice/internal/client/config"
	"github.com/dmitrijs2005/taxvoice/internal/client/conversation"
	"github.com/dmitrijs2005/taxvoice/internal/client/voiceagent"
	"github.com/dmitrijs2005/taxvoice/internal/logging"
	"golang.org/x/term"
)

// recordingLimit caps the in-memory copy of agent audio per call.
const recordingLimit = 64 << 20

var errNotLoggedIn = errors.New("not logged in")

// apiClient is the part of *api.Client the REPL uses directly.
type apiClient interface {
	Register(ctx context.Context, name, email, password, jobTitle string) (*api.User, error)
	Login(ctx context.Context, email, password string) error
	TokenLogin(ctx context.Context, token string) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*api.User, error)
	UpdateLanguage(ctx context.Context, language string) (string, error)
	Quota(ctx context.Context) (*api.Quota, error)
	Conversations(ctx context.Context) ([]api.Conversation, error)
	Share(ctx context.Context, conversationID string) (string, error)
}

// callController is satisfied by *conversation.Controller.
type callController interface {
	Run(ctx context.Context) error
	Mount(ctx context.Context) error
	Start(ctx context.Context) error
	End(ctx context.Context) error
	SwitchDevice(ctx context.Context) error
	RetrySave(ctx context.Context) error
	Close(ctx context.Context) error
	SetMuted(ctx context.Context, muted bool) error
	SendText(ctx context.Context, text string) error
	Snapshot() conversation.Snapshot
}

type App struct {
	cfg    *config.Config
	api    apiClient
	reader *bufio.Reader
	out    io.Writer
	log    logging.Logger
	render *renderer

	// newCall builds the controller for a logged-in user.
	newCall func(opts conversation.Options) callController

	user     *api.User
	call     callController
	stopCall context.CancelFunc
	callDone chan struct{}
}

func NewApp(cfg *config.Config) (*App, error) {
	client, err := api.New(cfg.ServerURL, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	out := &syncWriter{w: os.Stdout}

	a := &App{
		cfg:    cfg,
		api:    client,
		reader: bufio.NewReader(os.Stdin),
		out:    out,
		log:    logger,
		render: newRenderer(out),
	}
	a.newCall = func(opts conversation.Options) callController {
		rec := &conversation.MemoryRecorder{Limit: recordingLimit}
		agent := voiceagent.NewElevenLabs(voiceagent.ElevenLabsConfig{
			AgentID: cfg.ElevenLabsAgentID,
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsURL,
		}, rec.Write)
		return conversation.New(agent, client, conversation.PermissionFunc(terminalPermission), rec, conversation.Config{
			Options:      opts,
			TickInterval: cfg.TickInterval,
			OnChange:     a.render.update,
			Logger:       logger,
		})
	}
	return a, nil
}

// Run starts the REPL and blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.stopController()

	fmt.Fprintln(a.out, "Welcome to the taxvoice assistant (type 'help' for commands)")
	scanner := bufio.NewScanner(a.reader)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) inCall() bool {
	if a.call == nil {
		return false
	}
	switch a.call.Snapshot().State {
	case conversation.StateConnecting, conversation.StateActive,
		conversation.StateEnding, conversation.StateSummarizing:
		return true
	}
	return false
}

// onLoggedIn loads the profile and starts a controller configured for it.
func (a *App) onLoggedIn(ctx context.Context) error {
	user, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	a.user = user
	a.startController(ctx)
	if user.QuickStart {
		fmt.Fprintln(a.out, "Pick your language with 'language <english|arabic|chinese|russian>'.")
	}
	return nil
}

func (a *App) startController(ctx context.Context) {
	a.stopController()

	opts := conversation.Options{
		StartFloor: a.cfg.StartFloor,
		Language:   agentLanguage(a.user.Language),
		Greeting:   a.cfg.Greeting,
	}
	call := a.newCall(opts)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := call.Run(runCtx); err != nil {
			a.log.Error(runCtx, "conversation controller stopped", "error", err)
		}
	}()

	a.call, a.stopCall, a.callDone = call, cancel, done
	if err := call.Mount(ctx); err != nil {
		a.log.Warn(ctx, "mount failed", "error", err)
	}
}

func (a *App) stopController() {
	if a.stopCall == nil {
		return
	}
	a.stopCall()
	<-a.callDone
	a.call, a.stopCall, a.callDone = nil, nil, nil
}

// agentLanguage maps the stored preference to the agent's language code.
func agentLanguage(pref *string) string {
	if pref == nil {
		return ""
	}
	switch *pref {
	case "english":
		return "en"
	case "arabic":
		return "ar"
	case "chinese":
		return "zh"
	case "russian":
		return "ru"
	}
	return ""
}

// terminalPermission stands in for the microphone prompt: a call needs an
// interactive terminal for typed turns.
func terminalPermission(context.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("no input device: stdin is not a terminal")
	}
	return nil
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
