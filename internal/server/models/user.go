// Package models defines server-side data models persisted in the database.
package models

import (
	"slices"
	"time"
)

// User is a registered account. CallSeconds is nil for users that never had a
// quota configured; Language is nil until the quick-start prompt is answered.
type User struct {
	ID           string
	Email        string
	Name         string
	JobTitle     string
	PasswordHash string
	Language     *string
	CallSeconds  *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var JobTitles = []string{
	"Tax Consultant",
	"Tax Manager",
	"Tax Director",
	"Tax Partner",
	"Tax Associate",
	"Tax Specialist",
	"Tax Analyst",
	"Tax Advisor",
	"Tax Accountant",
	"Other",
}

var Languages = []string{"english", "arabic", "chinese", "russian"}

func ValidJobTitle(s string) bool { return slices.Contains(JobTitles, s) }

func ValidLanguage(s string) bool { return slices.Contains(Languages, s) }
