package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("demandcast")
	if config.ServiceName != "demandcast" {
		t.Errorf("ServiceName = %q", config.ServiceName)
	}
	if config.CollectorEndpoint == "" {
		t.Error("CollectorEndpoint should have a default")
	}
	if config.SamplingRate <= 0 || config.SamplingRate > 1 {
		t.Errorf("SamplingRate = %f, want in (0, 1]", config.SamplingRate)
	}
}

func TestStartSpanNoProvider(t *testing.T) {
	// without an initialized provider the default no-op tracer is used;
	// span creation must still be safe
	ctx, span := StartSpan(context.Background(), "demandcast/test", "test.op",
		attribute.String("run.id", "run-1"),
	)
	if ctx == nil || span == nil {
		t.Fatal("StartSpan returned nil")
	}
	span.End()
}

func TestRecordErrorNilSafe(t *testing.T) {
	// must not panic on nil span or nil error
	RecordError(nil, errors.New("x"), "")

	_, span := StartSpan(context.Background(), "demandcast/test", "test.op")
	RecordError(span, nil, "")
	RecordError(span, errors.New("boom"), "context message")
	span.End()
}

func TestShutdownNil(t *testing.T) {
	if err := Shutdown(context.Background(), nil); err != nil {
		t.Errorf("Shutdown(nil) = %v, want nil", err)
	}
}
