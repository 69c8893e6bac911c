// Package ingest turns raw weekly usage exports into typed master table
// rows: CSV reading, mapping-column flattening, type coercion and report
// date detection.
package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/usage-dashboard/internal/frame"
	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/schema"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// idColumns identify a user week in the flattened tables.
var idColumns = []string{schema.ColWeekStart, schema.ColEmail, schema.ColName}

// Ingest converts a raw all-string frame into the rows of one upload.
// Rows without an email are dropped; unparseable dates become null and
// unparseable counts become 0.
func Ingest(raw *frame.Frame) (model.Dataset, error) {
	get := func(row []any, name string) string {
		idx := raw.Index(name)
		if idx < 0 || row[idx] == nil {
			return ""
		}
		return frame.FormatValue(row[idx])
	}
	weekCol := schema.ColWeekStart
	if raw.Has(ColPeriodStart) {
		weekCol = ColPeriodStart
	}

	var users []model.UserWeekRecord
	ids := frame.New([]schema.Column{
		{Name: schema.ColWeekStart, Type: schema.TypeDate},
		{Name: schema.ColEmail, Type: schema.TypeString},
		{Name: schema.ColName, Type: schema.TypeString},
		{Name: ColModelToMessages, Type: schema.TypeString},
		{Name: ColToolToMessages, Type: schema.TypeString},
	})

	for _, row := range raw.Rows {
		email := strings.TrimSpace(get(row, schema.ColEmail))
		if email == "" {
			continue
		}
		rec := model.UserWeekRecord{
			WeekStart:       ParseDate(get(row, weekCol)),
			Email:           email,
			Name:            get(row, schema.ColName),
			UserStatus:      model.ParseUserStatus(get(row, schema.ColUserStatus)),
			IsActive:        ParseBool(get(row, schema.ColIsActive)),
			Messages:        ParseCount(get(row, schema.ColMessages)),
			GPTsMessaged:    ParseCount(get(row, schema.ColGPTsMessaged)),
			ToolsMessaged:   ParseCount(get(row, schema.ColToolsMessaged)),
			ProjectsCreated: ParseCount(get(row, schema.ColProjectsCreated)),
			LastDayActive:   ParseDate(get(row, schema.ColLastDayActive)),
		}
		users = append(users, rec)

		var week any
		if !rec.WeekStart.IsZero() {
			week = rec.WeekStart.Time()
		}
		ids.Append(week, rec.Email, nullable(rec.Name),
			nullable(get(row, ColModelToMessages)), nullable(get(row, ColToolToMessages)))
	}

	modelRows, err := Flatten(ids, idColumns, ColModelToMessages, schema.ColModel, schema.ColMessages)
	if err != nil {
		return model.Dataset{}, err
	}
	toolRows, err := Flatten(ids, idColumns, ColToolToMessages, schema.ColTool, schema.ColMessages)
	if err != nil {
		return model.Dataset{}, err
	}

	ds := model.Dataset{Users: users}
	for _, r := range modelRows.Rows {
		week, email, name, key, value := usageCells(r)
		ds.Models = append(ds.Models, model.ModelUsageRecord{
			WeekStart: week, Email: email, Name: name, Model: key, Messages: ParseCount(value),
		})
	}
	for _, r := range toolRows.Rows {
		week, email, name, key, value := usageCells(r)
		ds.Tools = append(ds.Tools, model.ToolUsageRecord{
			WeekStart: week, Email: email, Name: name, Tool: key, Messages: ParseCount(value),
		})
	}
	return ds, nil
}

func usageCells(r []any) (model.Date, string, string, string, string) {
	week, _ := r[0].(time.Time)
	return model.DateOf(week), r[1].(string), r[2].(string), r[3].(string), r[4].(string)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ParseDate accepts the date layouts seen in exports and truncates any time
// part. Anything else yields the null date.
func ParseDate(s string) model.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.DateOf(t)
		}
	}
	return model.Date{}
}

// ParseCount coerces a count cell: parsed as a float and truncated toward
// zero. Unparseable, NaN and infinite values become 0, negatives clamp to 0.
func ParseCount(s string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// ParseBool treats true, t, yes, y and 1 (any case) as true.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true
	}
	return false
}
