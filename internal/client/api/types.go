package api

import "time"

type User struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	JobTitle   string  `json:"jobTitle"`
	Language   *string `json:"language"`
	QuickStart bool    `json:"quickStart"`
}

type Quota struct {
	Configured bool   `json:"configured"`
	Remaining  int64  `json:"remaining"`
	Level      string `json:"level"`
	CanStart   bool   `json:"canStart"`
	UpgradeURL string `json:"upgradeUrl"`
}

// Draft is a finished call as submitted for storage.
type Draft struct {
	Transcript string     `json:"transcript"`
	Summary    string     `json:"summary,omitempty"`
	Duration   int64      `json:"duration"`
	StartTime  *time.Time `json:"startTime,omitempty"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Status     string     `json:"status,omitempty"`
}

type Conversation struct {
	ID            string    `json:"id"`
	Transcript    string    `json:"transcript"`
	Summary       string    `json:"summary"`
	Duration      int64     `json:"duration"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	QuotaExceeded bool      `json:"quotaExceeded,omitempty"`
}

type errorBody struct {
	Error     string `json:"error"`
	Remaining *int64 `json:"remaining"`
}
