package world

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/store"
)

// Open loads the world named def.Name, creating its record from def when the
// database has none.
func Open(ctx context.Context, db store.DB, def model.World, opts ...Option) (*World, error) {
	st := db.UnitOfWork()
	worlds, err := st.Query(ctx, model.KindWorld, model.Key{})
	if err != nil {
		return nil, fmt.Errorf("failed to list worlds: %w", err)
	}
	for _, e := range worlds {
		if rec := e.(*model.World); rec.Name == def.Name {
			return New(ctx, db, rec, opts...)
		}
	}

	rec := def
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := st.Add(ctx, &rec); err != nil {
		return nil, err
	}
	if err := st.Sync(ctx); err != nil {
		return nil, fmt.Errorf("failed to create world %s: %w", rec.Name, err)
	}
	return New(ctx, db, &rec, opts...)
}
