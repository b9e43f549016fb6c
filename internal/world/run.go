package world

import (
	"context"
	"errors"
	"time"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/store"
)

// Run ticks the world every interval until ctx is done. onTick, if not nil,
// runs after every tick on the tick goroutine.
func (w *World) Run(ctx context.Context, interval time.Duration, onTick func(*World)) error {
	if interval <= 0 {
		interval = consts.DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info("running at %v per tick", interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			return ctx.Err()
		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now
			if limit := interval * consts.MaxTickCatchup; delta > limit {
				w.log.Warn("tick overran by %v, clamping", delta-interval)
				delta = limit
			}

			start := time.Now()
			w.Tick(delta)
			w.flush(ctx)
			if onTick != nil {
				onTick(w)
			}
			if took := time.Since(start); took > interval {
				w.log.Warn("tick took %v, longer than the %v interval", took, interval)
			}
		}
	}
}

// flush syncs the tick's mutations. A conflict drops them and reloads the
// world from storage; it never stops the loop.
func (w *World) flush(ctx context.Context) {
	err := w.st.Sync(ctx)
	if err == nil {
		return
	}

	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		w.log.Warn("storage conflict: %v", conflict)
	} else {
		w.log.Error("storage sync failed: %v", err)
	}
	if err := w.load(ctx); err != nil {
		w.log.Error("failed to reload after sync failure: %v", err)
	}
}
