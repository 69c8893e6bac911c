package store

import (
	"fmt"

	"github.com/sakif/usage-dashboard/internal/model"
)

// On-disk row layouts. Dates are stored as YYYY-MM-DD strings, null as a
// missing value.

type userRow struct {
	WeekStart       string `parquet:"week_start,optional"`
	Email           string `parquet:"email"`
	Name            string `parquet:"name"`
	UserStatus      string `parquet:"user_status,dict"`
	IsActive        bool   `parquet:"is_active"`
	Messages        int64  `parquet:"messages"`
	GPTsMessaged    int64  `parquet:"gpts_messaged"`
	ToolsMessaged   int64  `parquet:"tools_messaged"`
	ProjectsCreated int64  `parquet:"projects_created"`
	LastDayActive   string `parquet:"last_day_active,optional"`
}

type modelRow struct {
	WeekStart string `parquet:"week_start,optional"`
	Email     string `parquet:"email"`
	Name      string `parquet:"name"`
	Model     string `parquet:"model"`
	Messages  int64  `parquet:"messages"`
}

type toolRow struct {
	WeekStart string `parquet:"week_start,optional"`
	Email     string `parquet:"email"`
	Name      string `parquet:"name"`
	Tool      string `parquet:"tool"`
	Messages  int64  `parquet:"messages"`
}

func toRows(ds model.Dataset) ([]userRow, []modelRow, []toolRow) {
	users := make([]userRow, len(ds.Users))
	for i, r := range ds.Users {
		users[i] = userRow{
			WeekStart:       r.WeekStart.String(),
			Email:           r.Email,
			Name:            r.Name,
			UserStatus:      string(r.UserStatus),
			IsActive:        r.IsActive,
			Messages:        r.Messages,
			GPTsMessaged:    r.GPTsMessaged,
			ToolsMessaged:   r.ToolsMessaged,
			ProjectsCreated: r.ProjectsCreated,
			LastDayActive:   r.LastDayActive.String(),
		}
	}
	models := make([]modelRow, len(ds.Models))
	for i, r := range ds.Models {
		models[i] = modelRow{r.WeekStart.String(), r.Email, r.Name, r.Model, r.Messages}
	}
	tools := make([]toolRow, len(ds.Tools))
	for i, r := range ds.Tools {
		tools[i] = toolRow{r.WeekStart.String(), r.Email, r.Name, r.Tool, r.Messages}
	}
	return users, models, tools
}

func fromRows(users []userRow, models []modelRow, tools []toolRow) (model.Dataset, error) {
	ds := model.Dataset{
		Users:  make([]model.UserWeekRecord, 0, len(users)),
		Models: make([]model.ModelUsageRecord, 0, len(models)),
		Tools:  make([]model.ToolUsageRecord, 0, len(tools)),
	}
	for i, r := range users {
		week, err := parseStored(r.WeekStart)
		if err != nil {
			return ds, fmt.Errorf("users row %d: %w", i, err)
		}
		last, err := parseStored(r.LastDayActive)
		if err != nil {
			return ds, fmt.Errorf("users row %d: %w", i, err)
		}
		ds.Users = append(ds.Users, model.UserWeekRecord{
			WeekStart:       week,
			Email:           r.Email,
			Name:            r.Name,
			UserStatus:      model.ParseUserStatus(r.UserStatus),
			IsActive:        r.IsActive,
			Messages:        r.Messages,
			GPTsMessaged:    r.GPTsMessaged,
			ToolsMessaged:   r.ToolsMessaged,
			ProjectsCreated: r.ProjectsCreated,
			LastDayActive:   last,
		})
	}
	for i, r := range models {
		week, err := parseStored(r.WeekStart)
		if err != nil {
			return ds, fmt.Errorf("models row %d: %w", i, err)
		}
		ds.Models = append(ds.Models, model.ModelUsageRecord{
			WeekStart: week, Email: r.Email, Name: r.Name, Model: r.Model, Messages: r.Messages,
		})
	}
	for i, r := range tools {
		week, err := parseStored(r.WeekStart)
		if err != nil {
			return ds, fmt.Errorf("tools row %d: %w", i, err)
		}
		ds.Tools = append(ds.Tools, model.ToolUsageRecord{
			WeekStart: week, Email: r.Email, Name: r.Name, Tool: r.Tool, Messages: r.Messages,
		})
	}
	return ds, nil
}

func parseStored(s string) (model.Date, error) {
	if s == "" {
		return model.Date{}, nil
	}
	return model.ParseDate(s)
}
