package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracerExportsSpans(t *testing.T) {
	var buf bytes.Buffer

	shutdown, err := InitTracer("crewzy-test", "dev", &buf, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "dispatch.classify")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "dispatch.classify") {
		t.Fatalf("expected span in output, got %s", out)
	}
	if !strings.Contains(out, "crewzy-test") {
		t.Fatalf("expected service name in output, got %s", out)
	}
}
