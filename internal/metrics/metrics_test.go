package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountersAndHandler(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.ObserveDecision("chat", true)
	m.ObserveDecision("chat", true)
	m.ObserveDecision("chat", false)
	m.ObserveWrite("classes", nil)
	m.ObserveWrite("classes", errors.New("down"))
	m.ObserveQuotaDenial("global")

	if got := testutil.ToFloat64(m.decisions.WithLabelValues("chat", "allowed")); got != 2 {
		t.Fatalf("expected 2 allowed decisions, got %v", got)
	}
	if got := testutil.ToFloat64(m.decisions.WithLabelValues("chat", "denied")); got != 1 {
		t.Fatalf("expected 1 denied decision, got %v", got)
	}
	if got := testutil.ToFloat64(m.historyWrites.WithLabelValues("classes", "error")); got != 1 {
		t.Fatalf("expected 1 failed write, got %v", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`lms_ratelimit_decisions_total{action="chat",outcome="allowed"} 2`,
		`lms_history_writes_total{outcome="ok",table="classes"} 1`,
		`lms_quota_denials_total{axis="global"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected exposition to contain %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveDecision("chat", true)
	m.ObserveWrite("classes", nil)
	m.ObserveQuotaDenial("global")
}
