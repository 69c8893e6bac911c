package model

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/schema"
)

// Dataset holds the three master tables in memory.
type Dataset struct {
	Users  []UserWeekRecord   `json:"users"`
	Models []ModelUsageRecord `json:"models"`
	Tools  []ToolUsageRecord  `json:"tools"`
}

// DeleteResult counts rows removed from each table.
type DeleteResult struct {
	Users  int `json:"users"`
	Models int `json:"models"`
	Tools  int `json:"tools"`
}

func (r DeleteResult) Total() int { return r.Users + r.Models + r.Tools }

// Clone returns a copy whose slices can be modified independently.
func (d Dataset) Clone() Dataset {
	return Dataset{
		Users:  slices.Clone(d.Users),
		Models: slices.Clone(d.Models),
		Tools:  slices.Clone(d.Tools),
	}
}

// Append returns a new dataset with the rows of other added after d's rows.
// d is not modified.
func (d Dataset) Append(other Dataset) Dataset {
	return Dataset{
		Users:  append(slices.Clone(d.Users), other.Users...),
		Models: append(slices.Clone(d.Models), other.Models...),
		Tools:  append(slices.Clone(d.Tools), other.Tools...),
	}
}

// Len is the total number of rows across the three tables.
func (d Dataset) Len() int { return len(d.Users) + len(d.Models) + len(d.Tools) }

// DeletePeriod returns a copy without the rows whose week_start equals day.
func (d Dataset) DeletePeriod(day Date) (Dataset, DeleteResult) {
	out := Dataset{
		Users:  lo.Reject(d.Users, func(r UserWeekRecord, _ int) bool { return r.WeekStart.Equal(day) }),
		Models: lo.Reject(d.Models, func(r ModelUsageRecord, _ int) bool { return r.WeekStart.Equal(day) }),
		Tools:  lo.Reject(d.Tools, func(r ToolUsageRecord, _ int) bool { return r.WeekStart.Equal(day) }),
	}
	return out, DeleteResult{
		Users:  len(d.Users) - len(out.Users),
		Models: len(d.Models) - len(out.Models),
		Tools:  len(d.Tools) - len(out.Tools),
	}
}

// ReportDates lists the distinct non-null week_start values of the users
// table, newest first.
func (d Dataset) ReportDates() []Date {
	days := lo.UniqBy(
		lo.FilterMap(d.Users, func(r UserWeekRecord, _ int) (Date, bool) {
			return r.WeekStart, !r.WeekStart.IsZero()
		}),
		func(day Date) string { return day.String() },
	)
	slices.SortFunc(days, func(a, b Date) int { return b.t.Compare(a.t) })
	return days
}

// HasReport reports whether rows for the report date are already stored.
func (d Dataset) HasReport(day Date) bool {
	return lo.ContainsBy(d.Users, func(r UserWeekRecord) bool { return r.WeekStart.Equal(day) })
}

// Filter narrows a dataset for display. The zero Filter matches everything.
type Filter struct {
	// Emails restricts rows to an allow-list; nil means no restriction.
	Emails []string `json:"emails,omitempty"`
	From   Date     `json:"from"`
	To     Date     `json:"to"`
}

func (f Filter) match(day Date, email string, allow map[string]struct{}) bool {
	if allow != nil {
		if _, ok := allow[strings.ToLower(email)]; !ok {
			return false
		}
	}
	if !f.From.IsZero() && (day.IsZero() || day.Before(f.From)) {
		return false
	}
	if !f.To.IsZero() && (day.IsZero() || day.After(f.To)) {
		return false
	}
	return true
}

func (f Filter) allowList() map[string]struct{} {
	if f.Emails == nil {
		return nil
	}
	return lo.SliceToMap(f.Emails, func(e string) (string, struct{}) {
		return strings.ToLower(strings.TrimSpace(e)), struct{}{}
	})
}

// View applies the filter and orders every table by week_start descending.
// Rows sharing a week keep their stored order.
func (d Dataset) View(f Filter) Dataset {
	allow := f.allowList()
	out := Dataset{
		Users: lo.Filter(d.Users, func(r UserWeekRecord, _ int) bool {
			return f.match(r.WeekStart, r.Email, allow)
		}),
		Models: lo.Filter(d.Models, func(r ModelUsageRecord, _ int) bool {
			return f.match(r.WeekStart, r.Email, allow)
		}),
		Tools: lo.Filter(d.Tools, func(r ToolUsageRecord, _ int) bool {
			return f.match(r.WeekStart, r.Email, allow)
		}),
	}
	slices.SortStableFunc(out.Users, func(a, b UserWeekRecord) int { return compareDesc(a.WeekStart, b.WeekStart) })
	slices.SortStableFunc(out.Models, func(a, b ModelUsageRecord) int { return compareDesc(a.WeekStart, b.WeekStart) })
	slices.SortStableFunc(out.Tools, func(a, b ToolUsageRecord) int { return compareDesc(a.WeekStart, b.WeekStart) })
	return out
}

// compareDesc orders newest first with null dates last.
func compareDesc(a, b Date) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	}
	return b.t.Compare(a.t)
}

// Frame converts one table to a generic frame for querying and display.
func (d Dataset) Frame(kind schema.Kind) *frame.Frame {
	f := frame.Empty(kind)
	switch kind {
	case schema.Users:
		for _, r := range d.Users {
			f.Append(dateCell(r.WeekStart), r.Email, r.Name, string(r.UserStatus), r.IsActive,
				r.Messages, r.GPTsMessaged, r.ToolsMessaged, r.ProjectsCreated, dateCell(r.LastDayActive))
		}
	case schema.Models:
		for _, r := range d.Models {
			f.Append(dateCell(r.WeekStart), r.Email, r.Name, r.Model, r.Messages)
		}
	case schema.Tools:
		for _, r := range d.Tools {
			f.Append(dateCell(r.WeekStart), r.Email, r.Name, r.Tool, r.Messages)
		}
	}
	return f
}

func dateCell(d Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time()
}
