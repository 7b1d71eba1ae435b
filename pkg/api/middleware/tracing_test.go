package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
	return recorder
}

func collectSpans(recorder *tracetest.SpanRecorder, min int, timeout time.Duration) []sdktrace.ReadOnlySpan {
	deadline := time.Now().Add(timeout)
	for {
		spans := recorder.Ended()
		if len(spans) >= min || time.Now().After(deadline) {
			return spans
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func attrInt64(attrs []attribute.KeyValue, key string, want int64) bool {
	for _, a := range attrs {
		if string(a.Key) == key && a.Value.AsInt64() == want {
			return true
		}
	}
	return false
}

func TestTracing_ContinuesInboundTrace(t *testing.T) {
	recorder := newSpanRecorder(t)

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		SpanID:     trace.SpanID{2, 2, 2, 2, 2, 2, 2, 2},
		TraceFlags: trace.FlagsSampled,
	})
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(trace.ContextWithSpanContext(context.Background(), parent), carrier)

	handler := Tracing(DefaultTracingOptions())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	for k, v := range carrier {
		req.Header.Set(k, v)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := collectSpans(recorder, 1, 500*time.Millisecond)
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if got := spans[0].Parent().TraceID(); got != parent.TraceID() {
		t.Fatalf("trace id = %s, want %s", got, parent.TraceID())
	}
}

func TestTracing_RootSpanWithoutHeaders(t *testing.T) {
	recorder := newSpanRecorder(t)

	handler := Tracing(DefaultTracingOptions())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	spans := collectSpans(recorder, 1, 500*time.Millisecond)
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Parent().IsValid() {
		t.Fatal("got a parented span, want a root span")
	}
}

func TestTracing_StatusMapping(t *testing.T) {
	cases := map[string]struct {
		httpStatus int
		spanStatus otelcodes.Code
	}{
		"2xx is ok":    {http.StatusOK, otelcodes.Ok},
		"4xx is error": {http.StatusNotFound, otelcodes.Error},
		"5xx is error": {http.StatusInternalServerError, otelcodes.Error},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			recorder := newSpanRecorder(t)

			handler := Tracing(DefaultTracingOptions())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.httpStatus)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

			spans := collectSpans(recorder, 1, 500*time.Millisecond)
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			if got := spans[0].Status().Code; got != tc.spanStatus {
				t.Fatalf("span status = %v, want %v", got, tc.spanStatus)
			}
			if !attrInt64(spans[0].Attributes(), "http.response.status_code", int64(tc.httpStatus)) {
				t.Fatalf("missing http.response.status_code=%d", tc.httpStatus)
			}
		})
	}
}

func TestTracing_SkipsProbeEndpoints(t *testing.T) {
	recorder := newSpanRecorder(t)

	handler := Tracing(DefaultTracingOptions())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if spans := collectSpans(recorder, 1, 200*time.Millisecond); len(spans) != 0 {
		t.Fatalf("spans for /health = %d, want 0", len(spans))
	}
}

func TestInjectOutboundTraceContext(t *testing.T) {
	newSpanRecorder(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "outbound")
	defer span.End()

	req := httptest.NewRequest(http.MethodGet, "http://example.test/path", nil).WithContext(ctx)
	req.Header.Set("x-custom", "1")

	injected := InjectOutboundTraceContext(req)
	if injected == nil {
		t.Fatal("nil request")
	}
	if injected.Header.Get("traceparent") == "" {
		t.Fatal("traceparent header not injected")
	}
	if injected.Header.Get("x-custom") != "1" {
		t.Fatal("existing header lost")
	}
}

func TestNewTracingRequest(t *testing.T) {
	newSpanRecorder(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "new-request")
	defer span.End()

	req, err := NewTracingRequest(ctx, http.MethodGet, "http://example.test/offers", nil)
	if err != nil {
		t.Fatalf("NewTracingRequest: %v", err)
	}
	if req.Header.Get("traceparent") == "" {
		t.Fatal("traceparent header not injected")
	}
}
