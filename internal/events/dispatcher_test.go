package events

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringlink/ringlink/internal/metrics"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/nodes"
	"github.com/ringlink/ringlink/internal/store"
)

type staticVerifier struct{ token string }

func (v staticVerifier) Matches(token string) bool { return token != "" && token == v.token }

type recordingReporter struct {
	mu       sync.Mutex
	commands []string
}

func (r *recordingReporter) AddNode(string, string, string) error { return nil }
func (r *recordingReporter) SetDriver(string, nodes.Driver, float64) {
}
func (r *recordingReporter) SendCommand(address string, cmd nodes.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, address+"/"+string(cmd))
}

func (r *recordingReporter) commandLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.commands...)
}

type noAPI struct{}

func (noAPI) Devices(context.Context) (*models.DeviceListing, error) { return nil, nil }
func (noAPI) SetFloodlight(context.Context, int64, bool) error       { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *recordingReporter, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reporter := &recordingReporter{}
	registry := nodes.NewRegistry()
	dev := models.Device{ID: 11, Description: "Front Door", Kind: "doorbell_v4"}
	require.True(t, registry.Add(nodes.NewDoorbellNode(dev, reporter, noAPI{})))
	motionNode := nodes.NewMotionNode(dev, reporter, 50*time.Millisecond)
	require.True(t, registry.Add(motionNode))
	t.Cleanup(motionNode.Stop)

	st := store.NewMemoryStore()
	d := NewDispatcher(registry, staticVerifier{token: "tok-1"}, st, metrics.NewMetrics("evtest"))

	r := gin.New()
	r.POST("/event", d.Handle)
	return r, reporter, st
}

func postEvent(r *gin.Engine, pragma, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/event", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if pragma != "" {
		req.Header.Set("Pragma", pragma)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestStaleTokenGets404(t *testing.T) {
	r, reporter, _ := newTestRouter(t)

	w := postEvent(r, "tok-old", `{"event":"new-ding","data":{"doorbell":{"id":11}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, reporter.commandLog())

	w = postEvent(r, "", `{"event":"new-ding","data":{"doorbell":{"id":11}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDingDispatchesToDoorbell(t *testing.T) {
	r, reporter, st := newTestRouter(t)

	w := postEvent(r, "tok-1", `{"event":"new-ding","data":{"doorbell":{"id":11,"description":"Front Door"}}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		for _, cmd := range reporter.commandLog() {
			if cmd == "11/DON" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		n, err := st.CountEvents(time.Time{})
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMotionDispatchesToMotionNode(t *testing.T) {
	r, reporter, _ := newTestRouter(t)

	w := postEvent(r, "tok-1", `{"event":"new-motion","data":{"doorbell":{"id":11}}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		for _, cmd := range reporter.commandLog() {
			if cmd == "11m/DON" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestUnrecognizedKindIsAccepted(t *testing.T) {
	r, reporter, st := newTestRouter(t)

	w := postEvent(r, "tok-1", `{"event":"new-something","data":{"doorbell":{"id":11}}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, reporter.commandLog())
	n, err := st.CountEvents(time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnknownNodeIsAccepted(t *testing.T) {
	r, reporter, _ := newTestRouter(t)

	w := postEvent(r, "tok-1", `{"event":"new-ding","data":{"doorbell":{"id":999}}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, reporter.commandLog())
}

func TestMalformedBodyIsAcknowledged(t *testing.T) {
	r, reporter, st := newTestRouter(t)

	// Acknowledged so the sender does not retry, but nothing dispatched.
	w := postEvent(r, "tok-1", `{not json`)
	assert.Equal(t, http.StatusOK, w.Code)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, reporter.commandLog())
	n, err := st.CountEvents(time.Time{})
	assert.NoError(t, err)
	assert.Zero(t, n)
}
