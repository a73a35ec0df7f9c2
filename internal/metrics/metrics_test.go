package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestNewMetricsRegistersFamilies(t *testing.T) {
	m := NewMetrics("ringlink")

	m.RecordTokenRefresh("success")
	m.RecordWebhookDelivery("dispatched")
	m.RecordWebhookDelivery("stale_token")
	m.RecordMotionWindow("started")
	m.RecordMotionWindow("ended")
	m.RecordPollTick("short", "ok")
	m.RecordAPICall("/devices", "200")
	m.SetNodesKnown("doorbell", 2)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	want := []string{
		"ringlink_token_refreshes_total",
		"ringlink_webhook_deliveries_total",
		"ringlink_motion_windows_total",
		"ringlink_poll_ticks_total",
		"ringlink_api_calls_total",
		"ringlink_nodes_known",
	}
	for _, name := range want {
		if !hasFamily(families, name) {
			t.Fatalf("expected metric family %s", name)
		}
	}

	if got := counterValue(families, "ringlink_webhook_deliveries_total", "outcome", "stale_token"); got != 1 {
		t.Fatalf("expected one stale_token delivery, got %v", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	m := NewMetrics("ringlink")
	m.RecordPollTick("long", "ok")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ringlink_poll_ticks_total") {
		t.Fatalf("expected exposition to contain poll tick counter")
	}
}

func hasFamily(families []*dto.MetricFamily, name string) bool {
	for _, family := range families {
		if family.GetName() == name {
			return true
		}
	}
	return false
}

func counterValue(families []*dto.MetricFamily, name, key, value string) float64 {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.Metric {
			for _, label := range metric.Label {
				if label.GetName() == key && label.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}
