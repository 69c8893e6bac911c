// Package model defines the typed records of the three master tables, the
// in-memory Dataset holding them, and the saved chart entity.
package model

import "strings"

// UserStatus is the account status category of a user row.
type UserStatus string

const (
	StatusEnabled  UserStatus = "enabled"
	StatusPending  UserStatus = "pending"
	StatusDisabled UserStatus = "disabled"
	StatusDeleted  UserStatus = "deleted"
	StatusUnknown  UserStatus = "unknown"
)

// ParseUserStatus normalizes free text into the closed category. Empty or
// unrecognized values map to StatusUnknown.
func ParseUserStatus(s string) UserStatus {
	switch st := UserStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusEnabled, StatusPending, StatusDisabled, StatusDeleted:
		return st
	default:
		return StatusUnknown
	}
}

// UserWeekRecord is one user's activity for one reporting week.
type UserWeekRecord struct {
	WeekStart       Date       `json:"week_start"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	UserStatus      UserStatus `json:"user_status"`
	IsActive        bool       `json:"is_active"`
	Messages        int64      `json:"messages"`
	GPTsMessaged    int64      `json:"gpts_messaged"`
	ToolsMessaged   int64      `json:"tools_messaged"`
	ProjectsCreated int64      `json:"projects_created"`
	LastDayActive   Date       `json:"last_day_active"`
}

// ModelUsageRecord is one user's message count for one model in one week.
type ModelUsageRecord struct {
	WeekStart Date   `json:"week_start"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	Messages  int64  `json:"messages"`
}

// ToolUsageRecord is one user's message count for one tool in one week.
type ToolUsageRecord struct {
	WeekStart Date   `json:"week_start"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Tool      string `json:"tool"`
	Messages  int64  `json:"messages"`
}
