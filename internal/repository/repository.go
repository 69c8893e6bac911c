// Package repository defines storage interfaces for saved charts. The
// service layer depends on these interfaces, never on a concrete database,
// so tests can swap in an in-memory fake.
package repository

import (
	"context"

	"github.com/sakif/usage-dashboard/internal/model"
	"github.com/sakif/usage-dashboard/internal/schema"
)

// ListOptions pages and narrows a listing. A zero Table lists every table.
type ListOptions struct {
	Limit  int
	Offset int
	Table  schema.Kind
}

// ChartRepository persists saved charts. Lookups of a missing id return an
// apperror.NotFound error.
type ChartRepository interface {
	Create(ctx context.Context, chart *model.SavedChart) error
	GetByID(ctx context.Context, id string) (*model.SavedChart, error)
	List(ctx context.Context, opts ListOptions) ([]model.SavedChart, error)
	Update(ctx context.Context, chart *model.SavedChart) error
	Delete(ctx context.Context, id string) error
}
