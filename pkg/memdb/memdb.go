package memdb

import (
	"context"
	"sync"

	"github.com/rtemka/comments/domain"
)

// MemDB - хранилище комментариев в памяти.
// Порядок выдачи совпадает с порядком создания.
type MemDB struct {
	mu   sync.RWMutex
	coms []domain.Comment
}

func New() *MemDB {
	return &MemDB{}
}

// Comments возвращает копию всех комментариев.
func (m *MemDB) Comments(_ context.Context) ([]domain.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Comment, len(m.coms))
	copy(out, m.coms)
	return out, nil
}

func (m *MemDB) Comment(_ context.Context, id string) (domain.Comment, error) {
	id, err := domain.NormalizeID(id)
	if err != nil {
		return domain.Comment{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(id); i >= 0 {
		return m.coms[i], nil
	}
	return domain.Comment{}, domain.ErrNotFound
}

func (m *MemDB) Create(_ context.Context, c *domain.Comment) error {
	c.ID = domain.NewID()
	c.Date = domain.Now()
	m.mu.Lock()
	m.coms = append(m.coms, *c)
	m.mu.Unlock()
	return nil
}

func (m *MemDB) Delete(_ context.Context, id string) error {
	id, err := domain.NormalizeID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return domain.ErrNotFound
	}
	m.coms = append(m.coms[:i], m.coms[i+1:]...)
	return nil
}

// Close - no-op
func (m *MemDB) Close() error { return nil }

func (m *MemDB) index(id string) int {
	for i := range m.coms {
		if m.coms[i].ID == id {
			return i
		}
	}
	return -1
}

// Testcom можно использовать для тестов
var Testcom = domain.Comment{
	Name:    "alice",
	Email:   "alice@example.com",
	Comment: "this is simple test comment",
}
