package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRequestMetricsLogProducesObservabilityEvent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newRequestMetrics(context.Background(), logger, http.MethodGet, "/tasks/:id")
	metrics.start = metrics.start.Add(-50 * time.Millisecond)
	metrics.ObserveStore(2 * time.Millisecond)
	metrics.ObserveStore(3 * time.Millisecond)
	metrics.SetTaskID("task-1")

	metrics.Log(http.StatusOK, nil)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected log entry")
	}
	if entry.Message != "observability.event" {
		t.Fatalf("unexpected message: %s", entry.Message)
	}
	if got := entry.Data["event.name"]; got != requestEventName {
		t.Fatalf("unexpected event name: %v", got)
	}
	if got := entry.Data["event.domain"]; got != requestEventDomain {
		t.Fatalf("unexpected event domain: %v", got)
	}
	attrsVal, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrsVal["http.route"] != "/tasks/:id" {
		t.Fatalf("unexpected route attribute: %#v", attrsVal["http.route"])
	}
	if attrsVal["taskboard.task.id"] != "task-1" {
		t.Fatalf("unexpected task id attribute: %#v", attrsVal["taskboard.task.id"])
	}
	if store, ok := attrsVal["taskboard.request.store_ms"].(float64); !ok || store != 5 {
		t.Fatalf("expected accumulated store duration of 5ms, got %#v", attrsVal["taskboard.request.store_ms"])
	}
	if total, ok := attrsVal["taskboard.request.total_ms"].(float64); !ok || total < 50 {
		t.Fatalf("expected total duration attribute to be set, got %#v", attrsVal["taskboard.request.total_ms"])
	}
	if entry.Data["severity_text"] != "INFO" {
		t.Fatalf("unexpected severity text: %v", entry.Data["severity_text"])
	}
	if entry.Data["severity_number"] != 9 {
		t.Fatalf("unexpected severity number: %v", entry.Data["severity_number"])
	}
	if traceID, ok := entry.Data["trace_id"].(string); !ok || traceID == "" {
		t.Fatalf("expected trace_id to be recorded, got %#v", entry.Data["trace_id"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != requestSpanName {
		t.Fatalf("unexpected span name: %s", span.Name)
	}
	spanAttrs := attributesToMap(span.Attributes)
	if code, ok := spanAttrs["http.status_code"].(int64); !ok || code != int64(http.StatusOK) {
		t.Fatalf("unexpected http.status_code on span: %#v", spanAttrs["http.status_code"])
	}
	if _, exists := spanAttrs["taskboard.request.error_stage"]; exists {
		t.Fatalf("expected no error stage, got %#v", spanAttrs["taskboard.request.error_stage"])
	}
	if span.Status.Code != codes.Ok {
		t.Fatalf("expected span status Ok, got %v", span.Status.Code)
	}

	event := findSpanEvent(span.Events, "observability.event")
	if event == nil {
		t.Fatalf("expected observability.event span event, got %#v", span.Events)
	}
	eventAttrs := attributesToMap(event.Attributes)
	if eventAttrs["event.name"] != requestEventName {
		t.Fatalf("unexpected event.name attribute: %#v", eventAttrs["event.name"])
	}
	if eventAttrs["severity_text"] != "INFO" {
		t.Fatalf("unexpected span event severity: %#v", eventAttrs["severity_text"])
	}
}

func TestRequestMetricsLogWithErrorSetsSpanStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newRequestMetrics(context.Background(), logger, http.MethodDelete, "/tasks/:id")
	metrics.SetErrorStage("store")
	boom := errors.New("store failure")

	metrics.Log(http.StatusInternalServerError, boom)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status.Code != codes.Error {
		t.Fatalf("expected span status error, got %v", span.Status.Code)
	}
	if span.Status.Description != boom.Error() {
		t.Fatalf("expected status description %q, got %q", boom.Error(), span.Status.Description)
	}

	event := findSpanEvent(span.Events, "observability.event")
	if event == nil {
		t.Fatalf("expected observability event in span events, got %#v", span.Events)
	}
	attrs := attributesToMap(event.Attributes)
	if attrs["severity_text"] != "ERROR" {
		t.Fatalf("unexpected severity_text for error: %#v", attrs["severity_text"])
	}
	if attrs["taskboard.request.error_stage"] != "store" {
		t.Fatalf("expected error stage attribute propagated, got %#v", attrs["taskboard.request.error_stage"])
	}
	if attrs["error.message"] != boom.Error() {
		t.Fatalf("expected error.message attribute, got %#v", attrs["error.message"])
	}

	if entry := hook.LastEntry(); entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error level log entry, got %#v", entry)
	}
}

func TestNilRequestMetricsIsSafe(t *testing.T) {
	var m *requestMetrics
	m.ObserveStore(time.Second)
	m.SetTaskID("x")
	m.SetErrorStage("store")
	m.Log(http.StatusOK, nil)
}

func TestObservabilityMiddlewareLogsNotFound(t *testing.T) {
	logger, hook := test.NewNullLogger()
	_, exporter, restore := setupTestTracer(t)
	defer restore()

	e, _ := newTestServer(t, Deps{Logger: logger})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != "observability.event" {
		t.Fatalf("expected observability log, got %#v", entry)
	}
	if entry.Level != log.WarnLevel || entry.Data["severity_text"] != "WARN" {
		t.Fatalf("expected warn severity for 404, got %v / %v", entry.Level, entry.Data["severity_text"])
	}
	attrs := entry.Data["attributes"].(map[string]any)
	if attrs["http.route"] != "/tasks/:id" || attrs["taskboard.task.id"] != "missing" {
		t.Fatalf("unexpected attributes: %#v", attrs)
	}
	if attrs["taskboard.request.error_stage"] != "store" {
		t.Fatalf("expected store error stage, got %#v", attrs["taskboard.request.error_stage"])
	}
	if code, ok := attrs["http.status_code"].(int64); !ok || code != http.StatusNotFound {
		t.Fatalf("unexpected status attribute: %#v", attrs["http.status_code"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Fatalf("expected client errors not to mark span as error, got %v", spans[0].Status.Code)
	}
}

func TestObservabilityMiddlewareRecordsPanics(t *testing.T) {
	logger, hook := test.NewNullLogger()
	_, exporter, restore := setupTestTracer(t)
	defer restore()

	e, _ := newTestServer(t, Deps{Logger: logger})
	e.GET("/explode", func(echo.Context) error { panic("kaboom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
	if resp := decodeJSON[errorResponse](t, rec); resp.Detail != "Internal Server Error" {
		t.Fatalf("unexpected detail %q", resp.Detail)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != "observability.event" || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error observability log, got %#v", entry)
	}
	attrs := entry.Data["attributes"].(map[string]any)
	if attrs["http.route"] != "/explode" {
		t.Fatalf("unexpected route: %#v", attrs["http.route"])
	}
	if msg, _ := attrs["error.message"].(string); !strings.Contains(msg, "kaboom") {
		t.Fatalf("expected panic value in error message, got %#v", attrs["error.message"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected span status error, got %v", spans[0].Status.Code)
	}
}

func TestSeverityForStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		err        error
		wantText   string
		wantNumber int
	}{
		{name: "ok", status: http.StatusOK, wantText: "INFO", wantNumber: 9},
		{name: "not found", status: http.StatusNotFound, wantText: "WARN", wantNumber: 13},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, wantText: "WARN", wantNumber: 13},
		{name: "error", status: http.StatusInternalServerError, wantText: "ERROR", wantNumber: 17},
		{name: "errorFromErr", status: 0, err: assertErr{}, wantText: "ERROR", wantNumber: 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotText, gotNumber := severityForStatus(tt.status, tt.err)
			if gotText != tt.wantText || gotNumber != tt.wantNumber {
				t.Fatalf("severityForStatus(%d, %v) = %s/%d, want %s/%d", tt.status, tt.err, gotText, gotNumber, tt.wantText, tt.wantNumber)
			}
		})
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "error" }

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	}
	return tp, exporter, cleanup
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func findSpanEvent(events []sdktrace.Event, name string) *sdktrace.Event {
	for i := range events {
		if events[i].Name == name {
			return &events[i]
		}
	}
	return nil
}
