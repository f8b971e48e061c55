package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/dmitrijs2005/taxvoice/internal/server/metrics"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taxvoice/internal/server/share"
	"github.com/google/uuid"
)

// Draft is a conversation as submitted by the client. Nil fields take their
// defaults.
type Draft struct {
	Transcript string
	Summary    *string
	Duration   *int64
	StartTime  *time.Time
	EndTime    *time.Time
	Status     *string
}

type SaveResult struct {
	Conversation  *models.Conversation
	QuotaExceeded bool
}

// Publisher stores a document and returns a link to it.
type Publisher interface {
	Publish(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// ConversationService is the record store. Saving reads the quota only to
// flag or reject; it never deducts seconds.
type ConversationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   Publisher
	startFloor  int64
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewConversationService(db *sql.DB, m repomanager.RepositoryManager, p Publisher, cfg *config.Config, mt *metrics.Metrics) *ConversationService {
	return &ConversationService{
		db:          db,
		repomanager: m,
		publisher:   p,
		startFloor:  cfg.StartFloorSeconds,
		metrics:     mt,
		now:         time.Now,
	}
}

// Save validates and persists a draft.
//
// Quota policy: no quota configured saves; a zero balance saves and sets
// QuotaExceeded; a balance between zero and the start floor is rejected with
// common.ErrQuotaBelowFloor; anything at or above the floor saves.
func (s *ConversationService) Save(ctx context.Context, userID string, d Draft) (*SaveResult, error) {
	c, err := s.fromDraft(userID, d)
	if err != nil {
		return nil, err
	}

	secs, err := s.repomanager.Users(s.db).CallSeconds(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &SaveResult{}
	if secs != nil {
		switch v := *secs; {
		case v == 0:
			res.QuotaExceeded = true
		case v < s.startFloor:
			return nil, &common.QuotaError{Kind: common.ErrQuotaBelowFloor, Remaining: v}
		}
	}

	c, err = s.repomanager.Conversations(s.db).Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	s.metrics.RecordSave(res.QuotaExceeded)
	res.Conversation = c
	return res, nil
}

func (s *ConversationService) fromDraft(userID string, d Draft) (*models.Conversation, error) {
	if strings.TrimSpace(d.Transcript) == "" {
		return nil, common.ErrEmptyTranscript
	}

	now := s.now().UTC()
	c := &models.Conversation{
		UserID:     userID,
		Transcript: d.Transcript,
		Summary:    common.SummaryNone,
		StartTime:  now,
		EndTime:    now,
		Status:     common.StatusCompleted,
	}

	if d.Summary != nil && strings.TrimSpace(*d.Summary) != "" {
		c.Summary = *d.Summary
	}
	if d.Duration != nil {
		if *d.Duration < 0 {
			return nil, fmt.Errorf("%w: duration must not be negative", common.ErrorValidation)
		}
		c.Duration = *d.Duration
	}
	if d.StartTime != nil {
		c.StartTime = *d.StartTime
	}
	if d.EndTime != nil {
		c.EndTime = *d.EndTime
	}
	if d.Status != nil {
		if !models.ValidStatus(*d.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, *d.Status)
		}
		c.Status = *d.Status
	}
	return c, nil
}

// List returns the user's conversations, most recent first.
func (s *ConversationService) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.repomanager.Conversations(s.db).ListByUser(ctx, userID)
}

// Share exports one of the user's conversations as markdown and returns a
// time-limited download link. Conversations of other users are not found.
func (s *ConversationService) Share(ctx context.Context, userID, conversationID string) (string, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return "", common.ErrorNotFound
	}
	if s.publisher == nil {
		s.metrics.RecordShare("disabled")
		return "", fmt.Errorf("%w: sharing is not configured", common.ErrUpstream)
	}

	c, err := s.repomanager.Conversations(s.db).GetByID(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}

	url, err := s.publisher.Publish(ctx, share.ObjectKey(c), share.MarkdownContentType, share.Markdown(c))
	if err != nil {
		s.metrics.RecordShare("error")
		return "", fmt.Errorf("%w: %w", common.ErrUpstream, err)
	}

	s.metrics.RecordShare("ok")
	return url, nil
}
