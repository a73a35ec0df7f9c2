package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringlink/ringlink/internal/api"
	"github.com/ringlink/ringlink/internal/auth"
	"github.com/ringlink/ringlink/internal/config"
	"github.com/ringlink/ringlink/internal/events"
	"github.com/ringlink/ringlink/internal/metrics"
	"github.com/ringlink/ringlink/internal/models"
	"github.com/ringlink/ringlink/internal/nodes"
	"github.com/ringlink/ringlink/internal/notify"
	"github.com/ringlink/ringlink/internal/poll"
	"github.com/ringlink/ringlink/internal/ring"
	"github.com/ringlink/ringlink/internal/store"
	"github.com/ringlink/ringlink/internal/subscription"
)

// testBridge assembles the full component stack against a fake Ring API.
type testBridge struct {
	Engine    *gin.Engine
	Store     *store.SQLiteStore
	Registry  *nodes.Registry
	Subs      *subscription.Manager
	Discovery *nodes.Discovery
	Poller    *poll.Poller

	subscribeCalls int32
}

func setupBridge(t *testing.T) *testBridge {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tb := &testBridge{}

	ringAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/devices":
			w.Write([]byte(`{
				"doorbells": [{"id": 11, "description": "Front Door", "kind": "doorbell_v4", "battery_life": 87}],
				"stickup_cams": [{"id": 21, "description": "Driveway", "kind": "hp_cam_v2", "battery_life": 64}]
			}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/subscription":
			atomic.AddInt32(&tb.subscribeCalls, 1)
		default:
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(ringAPI.Close)

	tmpDir := t.TempDir()
	st, err := store.NewSQLiteStoreWithRetention(filepath.Join(tmpDir, "bridge.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	creds := auth.NewCredentialStore(st.Settings())
	require.NoError(t, creds.Save(&models.OAuthToken{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		CreatedAt:    time.Now().Unix(),
	}))

	manager := auth.NewManager(config.OAuthConfig{
		ClientID: "client-1", ClientSecret: "secret-1", Worker: "worker-abc",
		AuthorizeURL: "https://oauth.example.com/authorize",
		TokenURL:     ringAPI.URL + "/oauth/token",
		Scope:        "read",
	}, creds, notify.NewBoard(nil), auth.WithDelays(time.Millisecond, time.Millisecond))

	client := ring.NewClient(ringAPI.URL, manager)
	subs := subscription.NewManager(client, "https://bridge.example.com/event")

	m := metrics.NewMetrics("flowtest")
	reporter := nodes.NewLogReporter(m)
	registry := nodes.NewRegistry()
	discovery := nodes.NewDiscovery(client, registry, reporter, st,
		50*time.Millisecond, subs.Subscribe)
	registry.Add(nodes.NewControllerNode(reporter, discovery.Run))

	dispatcher := events.NewDispatcher(registry, subs, st, m)
	server := api.NewServer(config.ServerConfig{Host: "127.0.0.1", HTTPPort: 0},
		st, registry, dispatcher, manager, subs, m)

	poller := poll.NewPoller(registry, client,
		func(ctx context.Context) error { return subs.Subscribe(ctx, registry.DeviceNodeCount()) },
		0, 0, m)

	tb.Engine = server.Router()
	tb.Store = st
	tb.Registry = registry
	tb.Subs = subs
	tb.Discovery = discovery
	tb.Poller = poller
	return tb
}

func (tb *testBridge) post(path, pragma, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if pragma != "" {
		req.Header.Set("Pragma", pragma)
	}
	tb.Engine.ServeHTTP(w, req)
	return w
}

func TestFullBridgeFlow(t *testing.T) {
	tb := setupBridge(t)

	// Discovery builds the node set and registers the webhook.
	require.NoError(t, tb.Discovery.Run(context.Background()))
	assert.ElementsMatch(t,
		[]string{"controller", "11", "11m", "21", "21m", "21l"},
		tb.Registry.Addresses())
	require.Equal(t, int32(1), atomic.LoadInt32(&tb.subscribeCalls))

	active, ok := tb.Subs.Active()
	require.True(t, ok)

	// A ding for the doorbell is accepted and logged.
	w := tb.post("/event", active.CorrelationToken,
		`{"event":"new-ding","data":{"doorbell":{"id":11,"description":"Front Door"}}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		n, err := tb.Store.CountEvents(time.Time{})
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Motion for the camera opens a window on the motion node.
	w = tb.post("/event", active.CorrelationToken,
		`{"event":"new-motion","data":{"doorbell":{"id":21,"description":"Driveway"}}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		n, err := tb.Store.CountEvents(time.Time{})
		return err == nil && n == 2
	}, 2*time.Second, 10*time.Millisecond)

	// A delivery carrying an old correlation token is rejected.
	w = tb.post("/event", "stale-token",
		`{"event":"new-ding","data":{"doorbell":{"id":11}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The long poll rotates the subscription token.
	require.NoError(t, tb.Poller.LongPoll(context.Background()))
	rotated, ok := tb.Subs.Active()
	require.True(t, ok)
	assert.NotEqual(t, active.CorrelationToken, rotated.CorrelationToken)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tb.subscribeCalls))

	// Deliveries against the old token now 404.
	w = tb.post("/event", active.CorrelationToken,
		`{"event":"new-ding","data":{"doorbell":{"id":11}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Node command endpoint switches the camera floodlight.
	w = tb.post("/nodes/21l/cmd/DON", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Health reflects the assembled state.
	hw := httptest.NewRecorder()
	tb.Engine.ServeHTTP(hw, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, hw.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(hw.Body.Bytes(), &health))
	assert.Equal(t, true, health["subscribed"])
	assert.Equal(t, float64(5), health["nodes"])
}

func TestShortPollRefreshesFromOneListing(t *testing.T) {
	tb := setupBridge(t)
	require.NoError(t, tb.Discovery.Run(context.Background()))

	require.NoError(t, tb.Poller.ShortPoll(context.Background()))

	// The cached devices survive for the operator surface.
	devices, err := tb.Store.ListDevices()
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}
