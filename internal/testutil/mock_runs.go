package testutil

import (
	"context"
	"sort"
	"sync"

	"relief-route-viewer/internal/database"
	"relief-route-viewer/internal/models"
)

// MockRunRepository is an in-memory RunRepository for handler tests
type MockRunRepository struct {
	mu   sync.Mutex
	runs map[string]*models.Run
}

func NewMockRunRepository() *MockRunRepository {
	return &MockRunRepository{
		runs: make(map[string]*models.Run),
	}
}

func (m *MockRunRepository) Create(ctx context.Context, run *models.Run) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *run
	m.runs[run.ID] = &stored
	return &stored, nil
}

func (m *MockRunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return run, nil
}

func (m *MockRunRepository) List(ctx context.Context) ([]models.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RunSummary, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, database.Summarize(run))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockRunRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.runs, id)
	return nil
}

// Count returns the number of stored runs
func (m *MockRunRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// MockStore is an in-memory DataStore
type MockStore struct {
	RunRepo *MockRunRepository
	Healthy error
}

func NewMockStore() *MockStore {
	return &MockStore{RunRepo: NewMockRunRepository()}
}

func (s *MockStore) Close() error                          { return nil }
func (s *MockStore) HealthCheck(ctx context.Context) error { return s.Healthy }
func (s *MockStore) Runs() database.RunRepository          { return s.RunRepo }
