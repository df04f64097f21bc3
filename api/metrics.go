package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "taskboard-api/api"
	requestSpanName    = "taskboard.request"
	requestEventName   = "taskboard.request.metrics"
	requestEventDomain = "taskboard.api"
	observabilityMsg   = "observability.event"
	metricsContextKey  = "taskboard.metrics"
)

type requestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	method        string
	route         string
	storeDuration time.Duration
	taskID        string
	errorStage    string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &requestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		method: method,
		route:  route,
	}, spanCtx
}

// metricsFrom returns the metrics attached by Observability. Handlers invoked
// without the middleware get a nil value; every method is nil-safe.
func metricsFrom(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsContextKey).(*requestMetrics)
	return m
}

func (m *requestMetrics) ObserveStore(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.storeDuration += duration
}

func (m *requestMetrics) SetTaskID(id string) {
	if m == nil {
		return
	}
	m.taskID = id
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if m == nil || stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *requestMetrics) attributes(status int, err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.String("http.method", m.method),
		attribute.Int("http.status_code", status),
		attribute.Float64("taskboard.request.total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.storeDuration > 0 {
		attrs = append(attrs, attribute.Float64("taskboard.request.store_ms", durationToMillis(m.storeDuration)))
	}
	if m.taskID != "" {
		attrs = append(attrs, attribute.String("taskboard.task.id", m.taskID))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("taskboard.request.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	return attrs
}

// Log ends the request span and writes one observability event.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := m.attributes(status, err)
	severityText, severityNumber := severityForStatus(status, err)

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	m.span.AddEvent(observabilityMsg, trace.WithAttributes(eventAttrs...))
	m.span.SetAttributes(attrs...)
	if status >= http.StatusInternalServerError || (err != nil && status == 0) {
		desc := http.StatusText(status)
		if err != nil {
			desc = err.Error()
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error(observabilityMsg)
	case "WARN":
		entry.Warn(observabilityMsg)
	default:
		entry.Info(observabilityMsg)
	}
}

// severityForStatus maps a response to OpenTelemetry log severity.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError, status == 0 && err != nil:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

// Observability traces every request and logs one event per response.
func Observability(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			metrics, ctx := newRequestMetrics(c.Request().Context(), logger, c.Request().Method, route)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(metricsContextKey, metrics)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			metrics.Log(c.Response().Status, err)
			return nil
		}
	}
}
