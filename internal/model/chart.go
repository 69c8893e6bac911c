package model

import (
	"time"

	"github.com/sakif/usage-dashboard/internal/schema"
)

// SavedChart is a chart request the operator chose to keep: the request,
// the generated code and the table it runs against. Replaying it re-executes
// Code on the current data without calling a backend.
type SavedChart struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Table     schema.Kind `json:"table"`
	Backend   string      `json:"backend"`
	Request   string      `json:"request"`
	Code      string      `json:"code"`
	Feedback  string      `json:"feedback,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
