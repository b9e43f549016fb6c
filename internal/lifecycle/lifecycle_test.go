package lifecycle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueIsNotStarted(t *testing.T) {
	var m Machine
	assert.Equal(t, NotStarted, m.State())
	assert.True(t, m.In(NotStarted, NotStarted))
}

func TestAdvanceFollowsTransitions(t *testing.T) {
	var m Machine
	require.True(t, m.Advance(NotStarted, Starting))
	require.True(t, m.Advance(Starting, Active))
	assert.False(t, m.Advance(Starting, Active), "already past starting")
	require.True(t, m.Advance(Active, Dispose))
	require.True(t, m.Advance(Dispose, Disposed))
	assert.Equal(t, Disposed, m.State())
}

func TestAdvanceBackwardsPanics(t *testing.T) {
	var m Machine
	assert.Panics(t, func() { m.Advance(Active, Starting) })
	assert.Panics(t, func() { m.Advance(Active, Active) })
}

func TestAdvanceToNeverRegresses(t *testing.T) {
	var m Machine
	prev, moved := m.AdvanceTo(Dispose)
	assert.Equal(t, NotStarted, prev)
	assert.True(t, moved)

	prev, moved = m.AdvanceTo(Starting)
	assert.Equal(t, Dispose, prev)
	assert.False(t, moved)
	assert.Equal(t, Dispose, m.State())
}

func TestRequireBand(t *testing.T) {
	var m Machine
	m.AdvanceTo(Active)

	assert.NotPanics(t, func() { m.Require("send", Starting, Active) })

	for _, band := range [][2]State{{NotStarted, Starting}, {Dispose, Disposed}} {
		func() {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				se, ok := r.(*StateError)
				require.True(t, ok)
				assert.Equal(t, Active, se.Current)
				assert.Equal(t, band[0], se.Min)
				assert.Contains(t, se.Error(), "active")
			}()
			m.Require("op", band[0], band[1])
		}()
	}
}

func TestStateMonotonicUnderContention(t *testing.T) {
	var m Machine
	var wg sync.WaitGroup
	stop := make(chan struct{})
	violations := make(chan [2]State, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		last := m.State()
		for {
			select {
			case <-stop:
				return
			default:
			}
			cur := m.State()
			if cur < last {
				select {
				case violations <- [2]State{last, cur}:
				default:
				}
				return
			}
			last = cur
		}
	}()

	var movers sync.WaitGroup
	for i := 0; i < 8; i++ {
		movers.Add(1)
		go func(i int) {
			defer movers.Done()
			for s := State(i % 5); s <= Disposed; s++ {
				m.AdvanceTo(s)
			}
		}(i)
	}
	movers.Wait()
	close(stop)
	wg.Wait()

	select {
	case v := <-violations:
		t.Fatalf("state regressed from %s to %s", v[0], v[1])
	default:
	}
	assert.Equal(t, Disposed, m.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "not-started", NotStarted.String())
	assert.Equal(t, "disposed", Disposed.String())
	assert.Equal(t, "state(9)", State(9).String())
}
