package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"relief-route-viewer/internal/database"
	"relief-route-viewer/internal/models"
)

// Fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type runRepository struct {
	store *Store
}

func (r *runRepository) Create(ctx context.Context, run *models.Run) (*models.Run, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	geoJSON, err := json.Marshal(run.Geo)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset: %w", err)
	}
	solutionsJSON, err := json.Marshal(run.Solutions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode solutions: %w", err)
	}

	created := *run
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	created.CreatedAt = created.CreatedAt.UTC()
	summary := database.Summarize(&created)

	query := `INSERT INTO runs (id, label, created_at, destination_count, solution_count, geo_json, solutions_json)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.store.db.ExecContext(ctx, query,
		created.ID, created.Label, created.CreatedAt.Format(timeLayout),
		summary.DestinationCount, summary.SolutionCount,
		string(geoJSON), string(solutionsJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return &created, nil
}

func (r *runRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, label, created_at, geo_json, solutions_json FROM runs WHERE id = ?`
	var run models.Run
	var createdAt, geoJSON, solutionsJSON string
	err := r.store.db.QueryRowContext(ctx, query, id).Scan(&run.ID, &run.Label, &createdAt, &geoJSON, &solutionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(geoJSON), &run.Geo); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	if err := json.Unmarshal([]byte(solutionsJSON), &run.Solutions); err != nil {
		return nil, fmt.Errorf("failed to decode solutions: %w", err)
	}

	return &run, nil
}

func (r *runRepository) List(ctx context.Context) ([]models.RunSummary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, label, created_at, destination_count, solution_count
	          FROM runs
	          ORDER BY created_at DESC`

	rows, err := r.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunSummary{}
	for rows.Next() {
		var s models.RunSummary
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Label, &createdAt, &s.DestinationCount, &s.SolutionCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if s.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
		}
		runs = append(runs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (r *runRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}

	return nil
}
