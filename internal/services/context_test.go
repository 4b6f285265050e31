package services_test

import (
	"context"
	"testing"

	"tsencode/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRecordingID(ctx, 42)
	ctx = services.WithJobID(ctx, 7)
	ctx = services.WithWorker(ctx, "encode-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RecordingIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected recording id: %v %v", id, ok)
	}
	if id, ok := services.JobIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if worker, ok := services.WorkerFromContext(ctx); !ok || worker != "encode-1" {
		t.Fatalf("unexpected worker: %v %v", worker, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorker(ctx, "")
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.WorkerFromContext(ctx); ok {
		t.Fatal("expected no worker value")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id value")
	}
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
}
