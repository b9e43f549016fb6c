package eventq

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/protocol"
)

type countingWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	return w.buf.Write(p)
}

func (w *countingWriter) snapshot() ([]byte, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.buf.Bytes()...), w.writes
}

func decodeAll(t *testing.T, raw []byte) []protocol.Event {
	t.Helper()
	r := bytes.NewReader(raw)
	var out []protocol.Event
	for {
		e, err := protocol.Decode(r)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, e)
	}
}

func TestOutboxFlushSingleWriteInOrder(t *testing.T) {
	w := &countingWriter{}
	o := NewOutbox(w)
	o.Send(&protocol.OutputEvent{Text: "one"}, &protocol.OutputEvent{Text: "two"})
	o.Send(&protocol.ShellPromptEvent{Address: "10.42.0.1", Path: "/"})
	assert.Equal(t, 3, o.Pending())

	require.NoError(t, o.Flush())
	raw, writes := w.snapshot()
	assert.Equal(t, 1, writes)
	assert.Zero(t, o.Pending())

	events := decodeAll(t, raw)
	require.Len(t, events, 3)
	assert.Equal(t, "one", events[0].(*protocol.OutputEvent).Text)
	assert.Equal(t, "two", events[1].(*protocol.OutputEvent).Text)
	assert.Equal(t, protocol.CommandShellPrompt, events[2].Command())
}

func TestOutboxFlushEmptyIsNoop(t *testing.T) {
	w := &countingWriter{}
	o := NewOutbox(w)
	require.NoError(t, o.Flush())
	_, writes := w.snapshot()
	assert.Zero(t, writes)
}

func TestOutboxRunFlushesOnSend(t *testing.T) {
	w := &countingWriter{}
	o := NewOutbox(w)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	for i := 0; i < 50; i++ {
		o.Send(&protocol.OutputEvent{Text: "line"})
	}

	assert.Eventually(t, func() bool {
		raw, _ := w.snapshot()
		return len(decodeAll(t, raw)) == 50
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestOutboxRunStopsOnWriteError(t *testing.T) {
	o := NewOutbox(failWriter{})
	o.Send(&protocol.OutputEvent{Text: "x"})
	err := o.Run(context.Background())
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

type deadlineRecorder struct {
	countingWriter
	deadlines int
}

func (d *deadlineRecorder) SetWriteDeadline(time.Time) error {
	d.deadlines++
	return nil
}

func TestOutboxWriteTimeout(t *testing.T) {
	d := &deadlineRecorder{}
	o := NewOutbox(d, WithWriteTimeout(d, time.Second))
	o.Send(&protocol.OutputEvent{Text: "x"})
	require.NoError(t, o.Flush())
	require.NoError(t, o.Flush())
	assert.Equal(t, 1, d.deadlines, "empty flush must not touch the deadline")
}

func TestOutboxSkipsUnencodableEvent(t *testing.T) {
	w := &countingWriter{}
	o := NewOutbox(w)
	o.Send(
		&protocol.OutputEvent{Text: "before"},
		&protocol.OutputEvent{Text: strings.Repeat("x", consts.MaxStringBytes+1)},
		&protocol.ShellPromptEvent{Address: "10.42.0.1", Path: "/"},
	)
	require.NoError(t, o.Flush())

	o.Send(&protocol.OutputEvent{Text: "after"})
	require.NoError(t, o.Flush())

	raw, _ := w.snapshot()
	events := decodeAll(t, raw)
	require.Len(t, events, 3)
	assert.Equal(t, "before", events[0].(*protocol.OutputEvent).Text)
	assert.Equal(t, protocol.CommandShellPrompt, events[1].Command())
	assert.Equal(t, "after", events[2].(*protocol.OutputEvent).Text)
}
