package models

import (
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
)

// Conversation is one finished voice session. Records are never updated.
type Conversation struct {
	ID         string
	UserID     string
	Transcript string
	Summary    string
	Duration   int64
	StartTime  time.Time
	EndTime    time.Time
	Status     string
	CreatedAt  time.Time
}

func ValidStatus(s string) bool {
	switch s {
	case common.StatusInProgress, common.StatusCompleted, common.StatusFailed:
		return true
	}
	return false
}
