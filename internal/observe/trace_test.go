package observe

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// withRecordingTracer swaps the global tracer provider for an in-memory one
// for the duration of the test and returns its exporter.
func withRecordingTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestStartSpan_RecordsNamedSpan(t *testing.T) {
	exp := withRecordingTracer(t)

	ctx, span := StartSpan(context.Background(), "retrieval.search")
	if CorrelationID(ctx) == "" {
		t.Error("span context carries no trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "retrieval.search" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "retrieval.search")
	}
}

func TestStartSpan_NestedSpansShareTrace(t *testing.T) {
	withRecordingTracer(t)

	ctx, outer := StartSpan(context.Background(), "ingest.session")
	defer outer.End()
	inner, span := StartSpan(ctx, "ingest.embed")
	defer span.End()

	if CorrelationID(inner) != CorrelationID(ctx) {
		t.Errorf("nested span trace ID = %q, want parent's %q",
			CorrelationID(inner), CorrelationID(ctx))
	}
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without a span = %q, want empty", got)
	}

	withRecordingTracer(t)
	ctx, span := StartSpan(context.Background(), "syncer.sync")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("correlation ID %q has length %d, want 32 hex chars", cid, len(cid))
	}
	for _, c := range cid {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("correlation ID %q contains non-hex character %q", cid, c)
			break
		}
	}
}

func TestLogger_AnnotatesActiveSpan(t *testing.T) {
	withRecordingTracer(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx, span := StartSpan(context.Background(), "retrieval.search")
	defer span.End()
	Logger(ctx).Info("fragments scored")

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("trace_id=")) {
		t.Errorf("log line missing trace_id: %s", out)
	}
	if !bytes.Contains([]byte(out), []byte("span_id=")) {
		t.Errorf("log line missing span_id: %s", out)
	}

	buf.Reset()
	Logger(context.Background()).Info("no span here")
	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Errorf("spanless log line should carry no trace_id: %s", buf.String())
	}
}

func TestTracer_IsUsableWithoutSetup(t *testing.T) {
	var tr trace.Tracer = Tracer()
	if tr == nil {
		t.Fatal("Tracer() returned nil")
	}
	// Without a registered SDK the global provider yields a no-op tracer;
	// starting a span must still be safe.
	_, span := tr.Start(context.Background(), "noop")
	span.End()
}
