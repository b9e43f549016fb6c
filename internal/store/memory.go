package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/codefionn/netshell/internal/model"
)

// Memory is an in-process DB with the same versioning rules as SQLite
type Memory struct {
	mu   sync.Mutex
	rows map[model.Key]row
}

// NewMemory returns an empty in-memory database
func NewMemory() *Memory {
	return &Memory{rows: make(map[model.Key]row)}
}

// UnitOfWork starts a unit of work
func (m *Memory) UnitOfWork() Store {
	return newUnit(m)
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

func cloneRow(r row) row {
	r.data = append([]byte(nil), r.data...)
	return r
}

func (m *Memory) load(_ context.Context, key model.Key) (row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[key]
	if !ok {
		return row{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return cloneRow(r), nil
}

func (m *Memory) query(_ context.Context, kind model.Kind, parent model.Key) ([]row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []row
	for k, r := range m.rows {
		if k.Kind == kind && r.parent == parent {
			out = append(out, cloneRow(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key.ID < out[j].key.ID })
	return out, nil
}

func (m *Memory) commit(_ context.Context, ops []op) (map[model.Key]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// validate everything first so a conflict leaves the rows untouched
	for _, o := range ops {
		current, exists := m.rows[o.row.key]
		if err := checkOp(o, current, exists); err != nil {
			return nil, err
		}
	}

	versions := make(map[model.Key]int64, len(ops))
	for _, o := range ops {
		switch o.kind {
		case opAdd:
			r := cloneRow(o.row)
			r.version = 1
			m.rows[r.key] = r
			versions[r.key] = 1
		case opUpdate:
			r := cloneRow(o.row)
			r.version = m.rows[r.key].version + 1
			m.rows[r.key] = r
			versions[r.key] = r.version
		case opDelete:
			delete(m.rows, o.row.key)
		}
	}
	return versions, nil
}
