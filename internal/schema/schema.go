// Package schema is the registry of the three master tables: their kinds,
// ordered columns and semantic column types.
package schema

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Type is the semantic type of a column.
type Type string

const (
	TypeDate     Type = "date"
	TypeString   Type = "string"
	TypeCategory Type = "category"
	TypeBool     Type = "bool"
	TypeInt      Type = "int"
	// TypeFloat only appears in derived query results (means, mixed sums).
	TypeFloat Type = "float"
)

// Column describes one column of a table.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Kind identifies one of the master tables.
type Kind string

const (
	Users  Kind = "users"
	Models Kind = "models"
	Tools  Kind = "tools"
)

// Column names shared by the ingestion pipeline and the store.
const (
	ColWeekStart       = "week_start"
	ColEmail           = "email"
	ColName            = "name"
	ColUserStatus      = "user_status"
	ColIsActive        = "is_active"
	ColMessages        = "messages"
	ColGPTsMessaged    = "gpts_messaged"
	ColToolsMessaged   = "tools_messaged"
	ColProjectsCreated = "projects_created"
	ColLastDayActive   = "last_day_active"
	ColModel           = "model"
	ColTool            = "tool"
)

var registry = map[Kind][]Column{
	Users: {
		{ColWeekStart, TypeDate},
		{ColEmail, TypeString},
		{ColName, TypeString},
		{ColUserStatus, TypeCategory},
		{ColIsActive, TypeBool},
		{ColMessages, TypeInt},
		{ColGPTsMessaged, TypeInt},
		{ColToolsMessaged, TypeInt},
		{ColProjectsCreated, TypeInt},
		{ColLastDayActive, TypeDate},
	},
	Models: {
		{ColWeekStart, TypeDate},
		{ColEmail, TypeString},
		{ColName, TypeString},
		{ColModel, TypeString},
		{ColMessages, TypeInt},
	},
	Tools: {
		{ColWeekStart, TypeDate},
		{ColEmail, TypeString},
		{ColName, TypeString},
		{ColTool, TypeString},
		{ColMessages, TypeInt},
	},
}

// Kinds returns the table kinds in display order.
func Kinds() []Kind {
	return []Kind{Users, Models, Tools}
}

// Columns returns a copy of the ordered columns for kind.
// It panics on an unknown kind; use ParseKind for untrusted input.
func Columns(kind Kind) []Column {
	cols, ok := registry[kind]
	if !ok {
		panic(fmt.Sprintf("schema: unknown table kind %q", kind))
	}
	return append([]Column(nil), cols...)
}

// ColumnNames returns just the names of Columns(kind).
func ColumnNames(kind Kind) []string {
	return lo.Map(Columns(kind), func(c Column, _ int) string { return c.Name })
}

// ParseKind accepts a kind name case-insensitively ("Users", "models", ...).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[k]; !ok {
		return "", fmt.Errorf("schema: unknown table %q (want one of users, models, tools)", s)
	}
	return k, nil
}

// Describe renders the column list as "name (type)" pairs.
func Describe(cols []Column) string {
	parts := lo.Map(cols, func(c Column, _ int) string {
		return fmt.Sprintf("%s (%s)", c.Name, c.Type)
	})
	return strings.Join(parts, ", ")
}
