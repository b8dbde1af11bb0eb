package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if rec.Name() == "" {
		t.Fatalf("expected generated expvar name")
	}
	ctx := context.Background()
	rec.Observe(ctx, "create_record", true, 20*time.Millisecond)
	rec.Observe(ctx, "create_record", true, 30*time.Millisecond)
	rec.Observe(ctx, "create_record", false, 10*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	if got := snap.DurationsMS["create_record"]; got != 60 {
		t.Fatalf("expected 60ms total, got %v", got)
	}
	counts := snap.Results["create_record"]
	if counts["success"] != 2 || counts["error"] != 1 {
		t.Fatalf("unexpected result counts: %+v", counts)
	}
	if len(snap.DurationsMS) != 1 {
		t.Fatalf("empty operation name must be dropped: %+v", snap.DurationsMS)
	}
}

func TestJSONTracerEncodesSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	ctx := context.Background()

	_, span := tracer.Start(ctx, "handle_callback")
	span.End(nil)
	_, span = tracer.Start(ctx, "handle_callback")
	span.End(errors.New("proof rejected"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" {
		t.Fatalf("unexpected statuses: %+v", entries)
	}
	if entries[1].Error != "proof rejected" {
		t.Fatalf("error span missing message: %+v", entries[1])
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 encoded lines, got %d", len(lines))
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Operation != "handle_callback" {
		t.Fatalf("unexpected decoded entry: %+v", decoded)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg)
	ctx := context.Background()
	rec.Observe(ctx, "create_record", true, 5*time.Millisecond)
	rec.Observe(ctx, "create_record", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := map[string]bool{}
	for _, fam := range families {
		byName[fam.GetName()] = true
		if fam.GetName() == "oraclevault_operations_total" {
			var total float64
			for _, metric := range fam.GetMetric() {
				total += metric.GetCounter().GetValue()
			}
			if total != 2 {
				t.Fatalf("expected 2 operation observations, got %v", total)
			}
		}
	}
	if !byName["oraclevault_operations_total"] || !byName["oraclevault_operation_duration_seconds"] {
		t.Fatalf("missing metric families: %v", byName)
	}
}

func TestServiceWithPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithMetricsRecorder(NewPrometheusMetricsRecorder(reg)))
	if _, _, err := svc.CreateRecord(context.Background(), "alice", []byte("x")); err != nil {
		t.Fatalf("create: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected gathered metrics after service call")
	}
}
