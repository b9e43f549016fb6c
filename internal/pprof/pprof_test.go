package pprof

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServesIndex(t *testing.T) {
	h := NewHandler("127.0.0.1:0")
	require.NoError(t, h.Start())
	defer h.Stop(context.Background())

	assert.Error(t, h.Start())

	resp, err := http.Get("http://" + h.Addr().String() + "/debug/pprof/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "goroutine")
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewHandler("127.0.0.1:0").Stop(context.Background()))
}
