// Package store persists model entities behind a unit-of-work contract.
//
// A [Store] is one unit of work: reads observe the backend plus the unit's
// own pending mutations, and nothing reaches the backend until [Store.Sync].
// Every stored row carries a version. Updates and deletes of rows the unit
// has read are checked against that version at sync time; a row that changed
// underneath fails the whole sync with a [*ConflictError] and the unit's
// pending mutations are dropped.
//
// A unit of work is not safe for concurrent use. Each goroutine that talks
// to storage takes its own from [DB.UnitOfWork].
package store

import (
	"context"

	"github.com/codefionn/netshell/internal/model"
)

// Store is one unit of work
type Store interface {
	// Get returns the entity stored under key or ErrNotFound.
	Get(ctx context.Context, key model.Key) (model.Entity, error)
	// GetBulk returns the entities that exist among keys, in key order.
	GetBulk(ctx context.Context, keys []model.Key) ([]model.Entity, error)
	// Query lists entities of kind whose parent is parent, ordered by id.
	// The zero parent lists top-level entities.
	Query(ctx context.Context, kind model.Kind, parent model.Key) ([]model.Entity, error)

	Add(ctx context.Context, e model.Entity) error
	Update(ctx context.Context, e model.Entity) error
	Delete(ctx context.Context, key model.Key) error
	AddBulk(ctx context.Context, es []model.Entity) error
	UpdateBulk(ctx context.Context, es []model.Entity) error
	DeleteBulk(ctx context.Context, keys []model.Key) error

	// Sync commits pending mutations atomically.
	Sync(ctx context.Context) error
}

// DB hands out units of work over one backend
type DB interface {
	UnitOfWork() Store
	Close() error
}

// row is the backend representation of one entity
type row struct {
	key     model.Key
	parent  model.Key
	version int64
	data    []byte
}

// backend is implemented by the memory and sqlite databases. commit applies
// ops in order, atomically, and returns the new version of every written key.
type backend interface {
	load(ctx context.Context, key model.Key) (row, error)
	query(ctx context.Context, kind model.Kind, parent model.Key) ([]row, error)
	commit(ctx context.Context, ops []op) (map[model.Key]int64, error)
}

type opKind int

const (
	opAdd opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opAdd:
		return "add"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

// op is one pending mutation. base is the row as the unit last saw it, nil
// when the unit never read the key.
type op struct {
	kind opKind
	row  row
	base *row
}
