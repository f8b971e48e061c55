// Package services contains the server-side business logic: accounts and
// sessions, the one-time token bridge, the call-seconds quota ledger and the
// conversation record store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/passhash"
	"github.com/dmitrijs2005/taxvoice/internal/server/auth"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/repomanager"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	JobTitle string
}

// UserService handles registration, local login, profile reads and the
// language preference, and mints session credentials for all of them.
type UserService struct {
	db                 *sql.DB
	repomanager        repomanager.RepositoryManager
	sessionSecret      []byte
	sessionTTL         time.Duration
	initialCallSeconds int64
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                 db,
		repomanager:        m,
		sessionSecret:      []byte(cfg.SessionSecret),
		sessionTTL:         cfg.SessionTTL,
		initialCallSeconds: cfg.InitialCallSeconds,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" || in.JobTitle == "" {
		return nil, fmt.Errorf("%w: missing required fields", common.ErrorValidation)
	}
	if !models.ValidJobTitle(in.JobTitle) {
		return nil, fmt.Errorf("%w: unknown job title", common.ErrorValidation)
	}

	hash, err := passhash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		Name:         in.Name,
		JobTitle:     in.JobTitle,
		PasswordHash: hash,
	}
	if s.initialCallSeconds != config.UnmeteredCallSeconds {
		secs := s.initialCallSeconds
		user.CallSeconds = &secs
	}

	user, err = s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login checks local credentials. Unknown emails and wrong passwords both
// yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (*auth.Session, string, error) {
	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrorUnauthorized
		}
		return nil, "", fmt.Errorf("error loading user: %w", err)
	}

	ok, err := passhash.Verify(user.PasswordHash, password)
	if err != nil || !ok {
		return nil, "", common.ErrorUnauthorized
	}

	return s.IssueSession(user)
}

// IssueSession mints a session credential for user.
func (s *UserService) IssueSession(user *models.User) (*auth.Session, string, error) {
	session := &auth.Session{UserID: user.ID, Email: user.Email, Name: user.Name}
	if user.Language != nil {
		session.Language = *user.Language
	}

	token, err := auth.MintSession(*session, s.sessionSecret, s.sessionTTL)
	if err != nil {
		return nil, "", fmt.Errorf("mint session: %w", err)
	}
	return session, token, nil
}

func (s *UserService) SessionTTL() time.Duration { return s.sessionTTL }

// ParseSession verifies a session cookie value.
func (s *UserService) ParseSession(token string) (*auth.Session, error) {
	return auth.ParseSession(token, s.sessionSecret)
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetUserByID(ctx, userID)
}

// UpdateLanguage stores the quick-start language choice and returns it.
func (s *UserService) UpdateLanguage(ctx context.Context, userID, language string) (string, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return "", fmt.Errorf("%w: language is required", common.ErrorValidation)
	}
	if !models.ValidLanguage(language) {
		return "", fmt.Errorf("%w: unsupported language", common.ErrorValidation)
	}

	if err := s.repomanager.Users(s.db).UpdateLanguage(ctx, userID, language); err != nil {
		return "", err
	}
	return language, nil
}
