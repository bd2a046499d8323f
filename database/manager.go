package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/tantralabs/optionlab/models"
)

var ErrNotFound = errors.New("result not found")

// ResultStore keeps backtest results by run id.
type ResultStore interface {
	SaveResult(ctx context.Context, result *models.Result) error
	GetResult(ctx context.Context, id string) (*models.Result, error)
	ListResults(ctx context.Context, limit int, offset int) ([]*models.Result, error)
	DeleteResult(ctx context.Context, id string) error
}

// MemoryStore is a ResultStore for runs that do not need to outlive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]*models.Result
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]*models.Result)}
}

// SaveResult stores a shallow copy. Saving again under the same id replaces it.
func (m *MemoryStore) SaveResult(ctx context.Context, result *models.Result) error {
	stored := &models.Result{}
	if err := copier.Copy(stored, result); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[result.ID]; !ok {
		m.order = append(m.order, result.ID)
	}
	m.results[result.ID] = stored
	return nil
}

func (m *MemoryStore) GetResult(ctx context.Context, id string) (*models.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return result, nil
}

// ListResults returns results newest first.
func (m *MemoryStore) ListResults(ctx context.Context, limit int, offset int) ([]*models.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []*models.Result
	for i := len(m.order) - 1 - offset; i >= 0 && len(results) < limit; i-- {
		results = append(results, m.results[m.order[i]])
	}
	return results, nil
}

func (m *MemoryStore) DeleteResult(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.results, id)
	for i, stored := range m.order {
		if stored == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
