package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestRequestMetricsLogFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	metrics, spanCtx := newRequestMetrics(context.Background(), logger, "/api/tasks")
	if spanCtx == nil {
		t.Fatal("expected span context")
	}

	metrics.ObserveAuth(2 * time.Millisecond)
	metrics.ObserveStore(5 * time.Millisecond)
	metrics.ObserveEncode(time.Millisecond)
	metrics.SetTasksReturned(4)
	metrics.Log(200, nil)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Data["route"] != "/api/tasks" {
		t.Fatalf("unexpected route: %v", entry.Data["route"])
	}
	if entry.Data["status"] != 200 {
		t.Fatalf("unexpected status: %v", entry.Data["status"])
	}
	if entry.Data["tasks_returned"] != 4 {
		t.Fatalf("unexpected tasks_returned: %v", entry.Data["tasks_returned"])
	}
	if _, ok := entry.Data["auth_ms"]; !ok {
		t.Fatal("expected auth_ms field")
	}
	if _, ok := entry.Data["store_ms"]; !ok {
		t.Fatal("expected store_ms field")
	}
	if _, ok := entry.Data["error"]; ok {
		t.Fatal("unexpected error field on success")
	}
}

func TestRequestMetricsLogErrorStage(t *testing.T) {
	logger, hook := test.NewNullLogger()
	metrics, _ := newRequestMetrics(context.Background(), logger, "/api/tasks/order")

	metrics.SetErrorStage("storage")
	metrics.Log(500, errors.New("boom"))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Data["error_stage"] != "storage" {
		t.Fatalf("unexpected error_stage: %v", entry.Data["error_stage"])
	}
	if entry.Data["error"] != "boom" {
		t.Fatalf("unexpected error: %v", entry.Data["error"])
	}
}

func TestDurationToMillis(t *testing.T) {
	if got := durationToMillis(1500 * time.Microsecond); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
	if got := durationToMillis(-time.Second); got != 0 {
		t.Fatalf("expected 0 for negative duration, got %v", got)
	}
}

func TestRequestMetricsNilSafety(t *testing.T) {
	var metrics *requestMetrics
	metrics.Log(200, nil)

	metrics, _ = newRequestMetrics(context.Background(), nil, "/api/tasks")
	metrics.Log(200, nil)
}
