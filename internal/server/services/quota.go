package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/server/config"
	"github.com/dmitrijs2005/taxvoice/internal/server/metrics"
	"github.com/dmitrijs2005/taxvoice/internal/server/repositories/repomanager"
)

// Warning levels shown next to the remaining balance.
const (
	LevelNominal   = "nominal"
	LevelLow       = "low"
	LevelCritical  = "critical"
	LevelExhausted = "exhausted"
	LevelUnmetered = "unmetered"

	lowThreshold      = 30
	criticalThreshold = 15
)

// Standing is a side-effect free view of a user's quota.
type Standing struct {
	Configured bool
	Remaining  int64
	Level      string
	CanStart   bool
	UpgradeURL string
}

// QuotaService is the call-seconds ledger. Only Tick with a positive amount
// changes the balance.
type QuotaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	startFloor  int64
	upgradeURL  string
	metrics     *metrics.Metrics
}

func NewQuotaService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, mt *metrics.Metrics) *QuotaService {
	return &QuotaService{
		db:          db,
		repomanager: m,
		startFloor:  cfg.StartFloorSeconds,
		upgradeURL:  cfg.ExternalDashboardURL,
		metrics:     mt,
	}
}

// Peek returns the remaining seconds without touching them.
// common.ErrNoQuotaConfigured is returned for users that have no quota.
func (s *QuotaService) Peek(ctx context.Context, userID string) (int64, error) {
	v, err := s.repomanager.Users(s.db).CallSeconds(ctx, userID)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, common.ErrNoQuotaConfigured
	}
	return *v, nil
}

// Tick deducts amount seconds. When fewer than amount remain the balance is
// set to zero and a *common.QuotaError of kind common.ErrQuotaExhausted is
// returned. A zero amount is a Peek.
func (s *QuotaService) Tick(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: tickSeconds must not be negative", common.ErrorValidation)
	}
	if amount == 0 {
		v, err := s.Peek(ctx, userID)
		s.metrics.RecordTick(tickOutcome("peek", err), 0)
		return v, err
	}

	prev, next, err := s.repomanager.Users(s.db).ApplyTick(ctx, userID, amount)
	if err != nil {
		s.metrics.RecordTick(tickOutcome("", err), 0)
		return 0, err
	}

	if prev < amount {
		s.metrics.RecordTick("exhausted", prev-next)
		return 0, &common.QuotaError{Kind: common.ErrQuotaExhausted, Remaining: 0}
	}
	s.metrics.RecordTick("ok", prev-next)
	return next, nil
}

func (s *QuotaService) Standing(ctx context.Context, userID string) (Standing, error) {
	st := Standing{UpgradeURL: s.upgradeURL}

	v, err := s.Peek(ctx, userID)
	switch {
	case errors.Is(err, common.ErrNoQuotaConfigured):
		st.Level = LevelUnmetered
		st.CanStart = true
		return st, nil
	case err != nil:
		return Standing{}, err
	}

	st.Configured = true
	st.Remaining = v
	st.Level = Level(v)
	st.CanStart = v >= s.startFloor
	return st, nil
}

// Level maps a configured balance to its warning level.
func Level(remaining int64) string {
	switch {
	case remaining <= 0:
		return LevelExhausted
	case remaining < criticalThreshold:
		return LevelCritical
	case remaining < lowThreshold:
		return LevelLow
	default:
		return LevelNominal
	}
}

func tickOutcome(ok string, err error) string {
	switch {
	case err == nil:
		return ok
	case errors.Is(err, common.ErrNoQuotaConfigured):
		return "unconfigured"
	case errors.Is(err, common.ErrorNotFound):
		return "unknown_user"
	default:
		return "error"
	}
}
