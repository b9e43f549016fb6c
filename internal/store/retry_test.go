package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientSQLiteErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"non-transient", errors.New("syntax error"), false},
		{"busy text", errors.New("SQLITE_BUSY"), true},
		{"locked text", errors.New("database is locked"), true},
		{"driver busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"driver constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"conflict", &ConflictError{Op: "update", Reason: "version 1 is now 2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientSQLiteErr(tt.err))
		})
	}
}

func TestRetryOpRetriesTransient(t *testing.T) {
	calls := 0
	cfg := retryConfig{maxRetries: 3, baseDelay: time.Millisecond, maxDelay: 5 * time.Millisecond}
	err := retryOp(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOpStopsOnPermanent(t *testing.T) {
	calls := 0
	permanent := errors.New("no such table")
	err := retryOp(context.Background(), defaultRetryConfig, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryOpExhausts(t *testing.T) {
	calls := 0
	cfg := retryConfig{maxRetries: 2, baseDelay: time.Millisecond, maxDelay: time.Millisecond}
	err := retryOp(context.Background(), cfg, func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOpHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := retryConfig{maxRetries: 5, baseDelay: time.Second, maxDelay: time.Second}
	err := retryOp(ctx, cfg, func() error { return errors.New("SQLITE_BUSY") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := retryConfig{baseDelay: 10 * time.Millisecond, maxDelay: 40 * time.Millisecond}
	assert.GreaterOrEqual(t, backoffDelay(cfg, 0), 10*time.Millisecond)
	assert.Less(t, backoffDelay(cfg, 0), 20*time.Millisecond)
	assert.Less(t, backoffDelay(cfg, 10), 50*time.Millisecond)
}
