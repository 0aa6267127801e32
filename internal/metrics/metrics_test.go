package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Tasks(t *testing.T) {
	r := NewRecorder()

	r.TaskStarted()
	r.TaskStarted()
	if got := testutil.ToFloat64(r.inFlight); got != 2 {
		t.Errorf("in flight = %v, want 2", got)
	}

	r.TaskFinished("metric", "", 10*time.Millisecond)
	r.TaskFinished("metric", "http_status", 20*time.Millisecond)

	if got := testutil.ToFloat64(r.inFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.fetches.WithLabelValues("metric", OutcomeSuccess, "")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.fetches.WithLabelValues("metric", OutcomeFailure, "http_status")); got != 1 {
		t.Errorf("failure count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.fetchDuration); got != 1 {
		t.Errorf("expected one duration series, got %d", got)
	}
}

func TestRecorder_Batches(t *testing.T) {
	r := NewRecorder()

	r.Discovered(42)
	r.BatchFinished(nil)
	r.BatchFinished(errors.New("discovery failed"))

	if got := testutil.ToFloat64(r.communities); got != 42 {
		t.Errorf("communities = %v, want 42", got)
	}
	if got := testutil.ToFloat64(r.batches.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Errorf("successful batches = %v", got)
	}
	if got := testutil.ToFloat64(r.batches.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Errorf("failed batches = %v", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.BatchFinished(nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "usagemetrics_batches_total") {
		t.Errorf("exposition missing batches counter:\n%s", rec.Body.String())
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder

	r.TaskStarted()
	r.TaskFinished("billing", "", time.Second)
	r.Discovered(1)
	r.BatchFinished(nil)

	if r.Registry() != nil {
		t.Error("nil recorder should have no registry")
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404 from nil recorder, got %d", rec.Code)
	}
}
