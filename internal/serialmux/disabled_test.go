package serialmux

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedWithin reports whether ch is closed before the deadline.
func closedWithin(ch <-chan string, d time.Duration) bool {
	select {
	case _, open := <-ch:
		return !open
	case <-time.After(d):
		return false
	}
}

func TestDisabledSerialMux_Unsubscribe(t *testing.T) {
	d := NewDisabledSerialMux()
	id, ch := d.Subscribe()
	_, other := d.Subscribe()

	d.Unsubscribe(id)
	d.Unsubscribe(id)
	d.Unsubscribe("unknown")

	assert.True(t, closedWithin(ch, time.Second))
	assert.False(t, closedWithin(other, 10*time.Millisecond))
}

func TestDisabledSerialMux_Close(t *testing.T) {
	d := NewDisabledSerialMux()
	_, a := d.Subscribe()
	_, b := d.Subscribe()

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.True(t, closedWithin(a, time.Second))
	assert.True(t, closedWithin(b, time.Second))

	_, late := d.Subscribe()
	assert.True(t, closedWithin(late, time.Second))
}

func TestDisabledSerialMux_NoOps(t *testing.T) {
	d := NewDisabledSerialMux()
	assert.NoError(t, d.Initialize())
	assert.NoError(t, d.SendCommand("S=20"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Monitor(ctx), context.Canceled)

	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/serial-disabled", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "disabled")
}

var _ SerialMuxInterface = (*DisabledSerialMux)(nil)
