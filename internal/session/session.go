// Package session holds the operator's interactive state: the loaded master
// tables and the chart being worked on. The host owns exactly one Session
// and every interaction runs under its lock.
package session

import (
	"sync"
	"time"

	"github.com/sakif/usage-dashboard/internal/chart"
	"github.com/sakif/usage-dashboard/internal/llm"
	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/schema"
)

// ChartState is the chart under construction. Code is empty until a
// generation succeeds and is cleared again when execution fails.
type ChartState struct {
	Table    schema.Kind   `json:"table"`
	Backend  llm.Backend   `json:"backend"`
	Request  string        `json:"request"`
	Code     string        `json:"code"`
	Feedback string        `json:"feedback"`
	Filter   model.Filter  `json:"filter"`
	Figure   *chart.Figure `json:"figure"`
	// Error is the message of the last failed execution.
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether a request has been made since the last clear.
func (c ChartState) Active() bool { return c.Request != "" }

// Chart statuses.
const (
	StatusIdle     = "idle"
	StatusRendered = "rendered"
	StatusNoChart  = "no_chart"
	StatusFailed   = "failed"
)

// Status summarizes the outcome of the last generation or execution.
func (c ChartState) Status() string {
	switch {
	case c.Figure != nil:
		return StatusRendered
	case c.Error != "":
		return StatusFailed
	case c.Code != "":
		return StatusNoChart
	default:
		return StatusIdle
	}
}

// State is the data a single interaction reads and mutates.
type State struct {
	Data  model.Dataset
	Chart ChartState
}

// ClearChart forgets the chart request, code and result. Data is kept.
func (s *State) ClearChart() { s.Chart = ChartState{} }

// Session serializes access to one State.
type Session struct {
	mu    sync.Mutex
	state State
}

// New returns a session starting from the loaded dataset.
func New(data model.Dataset) *Session {
	return &Session{state: State{Data: data}}
}

// Do runs fn with exclusive access to the state. Changes fn makes are kept
// even when it returns an error; callers replace Data only after the
// change has been persisted.
func (s *Session) Do(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

// Snapshot returns a copy of the state that is safe to read without the lock.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Data: s.state.Data.Clone(), Chart: s.state.Chart}
}
