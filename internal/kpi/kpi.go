// Package kpi computes the headline metrics for the most recent report week.
package kpi

import (
	"github.com/samber/lo"

	"github.com/sakif/usage-dashboard/internal/model"
)

// Keys in display order.
const (
	TotalUsers         = "total_users"
	ActiveUsers        = "active_users"
	TotalMessages      = "total_messages"
	AvgMessagesPerUser = "avg_messages_per_user"
)

// KPI is one metric of the latest week. Change is the percentage change
// against the previous week and is nil when there is no previous week.
type KPI struct {
	Key    string     `json:"key"`
	Name   string     `json:"name"`
	Week   model.Date `json:"week"`
	Value  float64    `json:"value"`
	Change *float64   `json:"change"`
	// Float marks metrics displayed with a fractional part.
	Float bool `json:"float"`
}

type weekStats struct {
	users, active, messages, avg float64
}

func statsFor(users []model.UserWeekRecord, week model.Date) weekStats {
	rows := lo.Filter(users, func(r model.UserWeekRecord, _ int) bool { return r.WeekStart.Equal(week) })
	var s weekStats
	s.users = float64(len(rows))
	s.active = float64(lo.CountBy(rows, func(r model.UserWeekRecord) bool { return r.IsActive }))
	s.messages = float64(lo.SumBy(rows, func(r model.UserWeekRecord) int64 { return r.Messages }))
	if len(rows) > 0 {
		s.avg = s.messages / s.users
	}
	return s
}

// Weekly returns the four KPIs for the newest week_start in ds.Users. It
// returns nil when no user row has a week.
func Weekly(ds model.Dataset) []KPI {
	weeks := ds.ReportDates()
	if len(weeks) == 0 {
		return nil
	}
	cur := statsFor(ds.Users, weeks[0])

	var prev *weekStats
	if len(weeks) > 1 {
		p := statsFor(ds.Users, weeks[1])
		prev = &p
	}
	change := func(pick func(weekStats) float64) *float64 {
		if prev == nil {
			return nil
		}
		return lo.ToPtr(PercentChange(pick(cur), pick(*prev)))
	}

	return []KPI{
		{Key: TotalUsers, Name: "Total Users", Week: weeks[0], Value: cur.users,
			Change: change(func(s weekStats) float64 { return s.users })},
		{Key: ActiveUsers, Name: "Active Users", Week: weeks[0], Value: cur.active,
			Change: change(func(s weekStats) float64 { return s.active })},
		{Key: TotalMessages, Name: "Total Messages", Week: weeks[0], Value: cur.messages,
			Change: change(func(s weekStats) float64 { return s.messages })},
		{Key: AvgMessagesPerUser, Name: "Avg Messages/User", Week: weeks[0], Value: cur.avg, Float: true,
			Change: change(func(s weekStats) float64 { return s.avg })},
	}
}

// PercentChange is (current-previous)/previous*100. A zero previous value
// yields 100 when current is positive and 0 otherwise.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// Format renders a KPI value the way the dashboard cards show it: one
// decimal for averages, K/M suffixes for large counts.
func Format(k KPI) string {
	switch {
	case k.Float:
		return formatFloat(k.Value, "")
	case k.Value >= 1_000_000:
		return formatFloat(k.Value/1_000_000, "M")
	case k.Value >= 1_000:
		return formatFloat(k.Value/1_000, "K")
	default:
		return formatInt(k.Value)
	}
}
