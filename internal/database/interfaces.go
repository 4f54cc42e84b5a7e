package database

import (
	"context"

	"relief-route-viewer/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Runs() RunRepository
}

// RunRepository handles persistence of ingested optimization runs
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) (*models.Run, error)
	GetByID(ctx context.Context, id string) (*models.Run, error)
	List(ctx context.Context) ([]models.RunSummary, error)
	Delete(ctx context.Context, id string) error
}

// Summarize returns the listing form of a run
func Summarize(run *models.Run) models.RunSummary {
	return models.RunSummary{
		ID:               run.ID,
		Label:            run.Label,
		CreatedAt:        run.CreatedAt,
		DestinationCount: len(run.Geo.Destinations),
		SolutionCount:    len(run.Solutions.Solutions),
	}
}
