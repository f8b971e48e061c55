package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/logging"
	"github.com/dmitrijs2005/taxvoice/internal/server/auth"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/dmitrijs2005/taxvoice/internal/server/services"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type fakeUsers struct {
	users       map[string]*models.User
	registerErr error
	loginErr    error
	languageErr error
	registered  services.RegisterInput
}

func (f *fakeUsers) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	f.registered = in
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: "u-new", Name: in.Name, Email: in.Email, JobTitle: in.JobTitle}, nil
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (*auth.Session, string, error) {
	if f.loginErr != nil {
		return nil, "", f.loginErr
	}
	return f.IssueSession(f.users["u-1"])
}

func (f *fakeUsers) IssueSession(u *models.User) (*auth.Session, string, error) {
	s := &auth.Session{UserID: u.ID, Email: u.Email, Name: u.Name}
	if u.Language != nil {
		s.Language = *u.Language
	}
	tok, err := auth.MintSession(*s, testSecret, time.Hour)
	return s, tok, err
}

func (f *fakeUsers) ParseSession(token string) (*auth.Session, error) {
	return auth.ParseSession(token, testSecret)
}

func (f *fakeUsers) SessionTTL() time.Duration { return time.Hour }

func (f *fakeUsers) Get(ctx context.Context, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateLanguage(ctx context.Context, userID, language string) (string, error) {
	if f.languageErr != nil {
		return "", f.languageErr
	}
	f.users[userID].Language = &language
	return language, nil
}

type fakeTokens struct {
	users *fakeUsers
	err   error
	got   string
}

func (f *fakeTokens) Exchange(ctx context.Context, token string) (*auth.Session, string, error) {
	f.got = token
	if f.err != nil {
		return nil, "", f.err
	}
	return f.users.IssueSession(f.users.users["u-1"])
}

type fakeQuota struct {
	remaining int64
	err       error
	amount    int64
	standing  services.Standing
}

func (f *fakeQuota) Tick(ctx context.Context, userID string, amount int64) (int64, error) {
	f.amount = amount
	if f.err != nil {
		return 0, f.err
	}
	return f.remaining, nil
}

func (f *fakeQuota) Standing(ctx context.Context, userID string) (services.Standing, error) {
	return f.standing, f.err
}

type fakeConversations struct {
	saved    []services.Draft
	res      *services.SaveResult
	list     []models.Conversation
	err      error
	sharedID string
}

func (f *fakeConversations) Save(ctx context.Context, userID string, d services.Draft) (*services.SaveResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.saved = append(f.saved, d)
	return f.res, nil
}

func (f *fakeConversations) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	return f.list, f.err
}

func (f *fakeConversations) Share(ctx context.Context, userID, id string) (string, error) {
	f.sharedID = id
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.example.com/" + id, nil
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	return f.summary, f.err
}

type testEnv struct {
	handler http.Handler
	users   *fakeUsers
	tokens  *fakeTokens
	quota   *fakeQuota
	convs   *fakeConversations
	opts    Options
}

func newTestEnv(t *testing.T, mutate ...func(*Services, *Options)) *testEnv {
	t.Helper()
	users := &fakeUsers{users: map[string]*models.User{
		"u-1": {ID: "u-1", Email: "ann@example.com", Name: "Ann", JobTitle: "Tax Advisor"},
	}}
	env := &testEnv{
		users:  users,
		tokens: &fakeTokens{users: users},
		quota:  &fakeQuota{},
		convs:  &fakeConversations{},
		opts: Options{
			CookieSecure:         true,
			AuthMode:             config.AuthModeInternal,
			LoginPath:            "/login",
			ExternalDashboardURL: "https://dashboard.example.com",
			MaxRequestBytes:      1 << 20,
		},
	}
	svc := Services{Users: users, Tokens: env.tokens, Quota: env.quota, Conversations: env.convs}
	for _, m := range mutate {
		m(&svc, &env.opts)
	}
	env.handler = NewRouter(svc, env.opts, logging.Nop(), nil)
	return env
}

func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	_, tok, err := e.users.IssueSession(e.users.users["u-1"])
	require.NoError(t, err)
	return &http.Cookie{Name: common.SessionCookieName, Value: tok}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func sessionCookieFrom(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == common.SessionCookieName {
			return c
		}
	}
	return nil
}
