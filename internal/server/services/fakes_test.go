package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/dbx"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/logintokens"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SessionSecret = "test-secret"
	return cfg
}

func int64p(v int64) *int64 { return &v }
func strp(v string) *string { return &v }

// fakeUsers keeps users in memory. ApplyTick holds the mutex for the whole
// read-modify-write, like the row lock does in Postgres.
type fakeUsers struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int

	createErr error
	getErr    error
	tickErr   error
	ticks     int
}

func newFakeUsers(us ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*models.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, e := range f.byID {
		if e.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	u.ID = "u-" + strconv.Itoa(f.nextID)
	u.CreatedAt = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateLanguage(ctx context.Context, id, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Language = &language
	return nil
}

func (f *fakeUsers) CallSeconds(ctx context.Context, id string) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if u.CallSeconds == nil {
		return nil, nil
	}
	v := *u.CallSeconds
	return &v, nil
}

func (f *fakeUsers) ApplyTick(ctx context.Context, id string, amount int64) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	if f.tickErr != nil {
		return 0, 0, f.tickErr
	}
	u, ok := f.byID[id]
	if !ok {
		return 0, 0, common.ErrorNotFound
	}
	if u.CallSeconds == nil {
		return 0, 0, common.ErrNoQuotaConfigured
	}
	prev := *u.CallSeconds
	next := prev - amount
	if next < 0 {
		next = 0
	}
	*u.CallSeconds = next
	return prev, next, nil
}

func (f *fakeUsers) balance(id string) *int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].CallSeconds
}

type fakeConversations struct {
	mu        sync.Mutex
	items     []models.Conversation
	createErr error
	seq       int
}

func (f *fakeConversations) Create(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	c.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", f.seq)
	c.CreatedAt = time.Unix(int64(f.seq), 0)
	f.items = append(f.items, *c)
	return c, nil
}

func (f *fakeConversations) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Conversation, 0)
	for _, c := range f.items {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeConversations) GetByID(ctx context.Context, userID, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.items {
		if c.ID == id && c.UserID == userID {
			cp := c
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeConversations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeLoginTokens struct {
	used    map[string]time.Time
	markErr error
	pruned  time.Time
}

func (f *fakeLoginTokens) MarkUsed(ctx context.Context, hash, email string, expiresAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	if f.used == nil {
		f.used = map[string]time.Time{}
	}
	if _, ok := f.used[hash]; ok {
		return common.ErrTokenReplayed
	}
	f.used[hash] = expiresAt
	return nil
}

func (f *fakeLoginTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	f.pruned = before
	var n int64
	for h, exp := range f.used {
		if exp.Before(before) {
			delete(f.used, h)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	u *fakeUsers
	c *fakeConversations
	l *fakeLoginTokens
}

func newFakeRepoManager(us ...*models.User) *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsers(us...), c: &fakeConversations{}, l: &fakeLoginTokens{}}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) Conversations(db dbx.DBTX) conversations.Repository { return m.c }
func (m *fakeRepoManager) LoginTokens(db dbx.DBTX) logintokens.Repository     { return m.l }
