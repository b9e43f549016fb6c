package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/codefionn/netshell/internal/model"
)

// unit implements Store over any backend. At most one pending op exists per
// key; later mutations of the same key are folded into it.
type unit struct {
	b       backend
	seen    map[model.Key]row
	pending map[model.Key]*op
	order   []model.Key
}

func newUnit(b backend) *unit {
	return &unit{
		b:       b,
		seen:    make(map[model.Key]row),
		pending: make(map[model.Key]*op),
	}
}

func encode(e model.Entity) (row, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return row{}, fmt.Errorf("failed to encode %s: %w", e.Key(), err)
	}
	return row{key: e.Key(), parent: e.Parent(), data: data}, nil
}

func decode(r row) (model.Entity, error) {
	e, err := model.New(r.key.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(r.data, e); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.key, err)
	}
	return e, nil
}

func (u *unit) Get(ctx context.Context, key model.Key) (model.Entity, error) {
	if o, ok := u.pending[key]; ok {
		if o.kind == opDelete {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return decode(o.row)
	}

	r, err := u.b.load(ctx, key)
	if err != nil {
		return nil, err
	}
	u.seen[key] = r
	return decode(r)
}

func (u *unit) GetBulk(ctx context.Context, keys []model.Key) ([]model.Entity, error) {
	out := make([]model.Entity, 0, len(keys))
	for _, k := range keys {
		e, err := u.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (u *unit) Query(ctx context.Context, kind model.Kind, parent model.Key) ([]model.Entity, error) {
	rows, err := u.b.query(ctx, kind, parent)
	if err != nil {
		return nil, err
	}

	merged := make(map[model.Key]row, len(rows))
	for _, r := range rows {
		if _, mine := u.pending[r.key]; !mine {
			u.seen[r.key] = r
		}
		merged[r.key] = r
	}
	for k, o := range u.pending {
		if k.Kind != kind {
			continue
		}
		switch {
		case o.kind == opDelete:
			delete(merged, k)
		case o.row.parent == parent:
			merged[k] = o.row
		default:
			delete(merged, k)
		}
	}

	keys := make([]model.Key, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })

	out := make([]model.Entity, 0, len(keys))
	for _, k := range keys {
		e, err := decode(merged[k])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (u *unit) base(key model.Key) *row {
	if r, ok := u.seen[key]; ok {
		return &r
	}
	return nil
}

func (u *unit) enqueue(o *op) {
	if _, ok := u.pending[o.row.key]; !ok {
		u.order = append(u.order, o.row.key)
	}
	u.pending[o.row.key] = o
}

func (u *unit) drop(key model.Key) {
	delete(u.pending, key)
	for i, k := range u.order {
		if k == key {
			u.order = append(u.order[:i], u.order[i+1:]...)
			return
		}
	}
}

func (u *unit) Add(_ context.Context, e model.Entity) error {
	r, err := encode(e)
	if err != nil {
		return err
	}
	if prev, ok := u.pending[r.key]; ok {
		if prev.kind != opDelete {
			return &ConflictError{Op: "add", Key: r.key, Reason: "already exists"}
		}
		// delete then add of a stored row is an overwrite
		prev.kind, prev.row = opUpdate, r
		return nil
	}
	u.enqueue(&op{kind: opAdd, row: r})
	return nil
}

func (u *unit) Update(_ context.Context, e model.Entity) error {
	r, err := encode(e)
	if err != nil {
		return err
	}
	if prev, ok := u.pending[r.key]; ok {
		if prev.kind == opDelete {
			return fmt.Errorf("update of deleted %s: %w", r.key, ErrNotFound)
		}
		prev.row = r
		return nil
	}
	u.enqueue(&op{kind: opUpdate, row: r, base: u.base(r.key)})
	return nil
}

func (u *unit) Delete(_ context.Context, key model.Key) error {
	if prev, ok := u.pending[key]; ok {
		switch prev.kind {
		case opAdd:
			u.drop(key)
		case opUpdate:
			prev.kind = opDelete
		}
		return nil
	}
	u.enqueue(&op{kind: opDelete, row: row{key: key}, base: u.base(key)})
	return nil
}

func (u *unit) AddBulk(ctx context.Context, es []model.Entity) error {
	for _, e := range es {
		if err := u.Add(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) UpdateBulk(ctx context.Context, es []model.Entity) error {
	for _, e := range es {
		if err := u.Update(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (u *unit) DeleteBulk(ctx context.Context, keys []model.Key) error {
	for _, k := range keys {
		if err := u.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Sync commits pending ops. On failure the pending ops and every remembered
// version are discarded, so the next read reloads from the backend.
func (u *unit) Sync(ctx context.Context) error {
	if len(u.order) == 0 {
		return nil
	}

	ops := make([]op, 0, len(u.order))
	for _, k := range u.order {
		ops = append(ops, *u.pending[k])
	}

	versions, err := u.b.commit(ctx, ops)
	u.pending = make(map[model.Key]*op)
	u.order = nil
	if err != nil {
		u.seen = make(map[model.Key]row)
		return err
	}

	for _, o := range ops {
		if o.kind == opDelete {
			delete(u.seen, o.row.key)
			continue
		}
		r := o.row
		r.version = versions[r.key]
		u.seen[r.key] = r
	}
	return nil
}
