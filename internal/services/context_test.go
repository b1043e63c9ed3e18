package services_test

import (
	"context"
	"testing"

	"animelink/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithGroupKey(ctx, "Frieren2023")
	ctx = services.WithFileName(ctx, "[Group] Frieren - 14.mkv")

	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if key, ok := services.GroupKeyFromContext(ctx); !ok || key != "Frieren2023" {
		t.Fatalf("unexpected group key: %v %v", key, ok)
	}
	if name, ok := services.FileNameFromContext(ctx); !ok || name != "[Group] Frieren - 14.mkv" {
		t.Fatalf("unexpected file name: %v %v", name, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithGroupKey(ctx, "")
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.GroupKeyFromContext(ctx); ok {
		t.Fatal("expected no group key value")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id value")
	}
}
