package batchflow

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewRunConfig_Defaults(t *testing.T) {
	cfg, err := newRunConfig(nil)
	if err != nil {
		t.Fatalf("newRunConfig() error = %v", err)
	}

	if cfg.logger != slog.Default() {
		t.Error("newRunConfig() logger should default to slog.Default()")
	}
	if cfg.name != "" {
		t.Errorf("name = %q, want empty", cfg.name)
	}
	if cfg.runID != "" {
		t.Errorf("runID = %q, want empty", cfg.runID)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := ProcessSlice(context.Background(), []int{1, 2}, BatchSize(1),
		func(context.Context, []int, int) error { return nil },
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("ProcessSlice() error = %v", err)
	}

	if !strings.Contains(buf.String(), "run completed") {
		t.Errorf("expected custom logger to receive run logs, got: %s", buf.String())
	}
}

func TestWithLogger_Nil(t *testing.T) {
	err := ProcessSlice(context.Background(), []int{1}, BatchSize(1),
		func(context.Context, []int, int) error { return nil },
		WithLogger(nil),
	)
	if err == nil {
		t.Error("ProcessSlice() expected error for nil logger, got nil")
	}
}

func TestWithName_AddedToLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := ProcessSlice(context.Background(), []int{1}, BatchSize(1),
		func(context.Context, []int, int) error { return nil },
		WithLogger(logger),
		WithName("users-export"),
	)
	if err != nil {
		t.Fatalf("ProcessSlice() error = %v", err)
	}

	if !strings.Contains(buf.String(), "run_name=users-export") {
		t.Errorf("expected run_name in logs, got: %s", buf.String())
	}
}

func TestWithRunID(t *testing.T) {
	var got string

	err := ProcessSlice(context.Background(), []int{1}, BatchSize(1),
		func(context.Context, []int, int) error { return nil },
		WithRunID("run-123"),
		WithBatchCallback(func(r BatchResult) { got = r.RunID }),
	)
	if err != nil {
		t.Fatalf("ProcessSlice() error = %v", err)
	}

	if got != "run-123" {
		t.Errorf("BatchResult.RunID = %q, want %q", got, "run-123")
	}
}

func TestWithRunID_Empty(t *testing.T) {
	err := ProcessSlice(context.Background(), []int{1}, BatchSize(1),
		func(context.Context, []int, int) error { return nil },
		WithRunID(""),
	)
	if err == nil {
		t.Error("ProcessSlice() expected error for empty run id, got nil")
	}
}

func TestWithRunID_GeneratedWhenUnset(t *testing.T) {
	ids := make(map[string]bool)

	for i := 0; i < 3; i++ {
		err := ProcessSlice(context.Background(), []int{1}, BatchSize(1),
			func(context.Context, []int, int) error { return nil },
			WithBatchCallback(func(r BatchResult) { ids[r.RunID] = true }),
		)
		if err != nil {
			t.Fatalf("ProcessSlice() error = %v", err)
		}
	}

	if len(ids) != 3 {
		t.Errorf("got %d distinct run ids, want 3", len(ids))
	}
	for id := range ids {
		if id == "" {
			t.Error("generated run id should not be empty")
		}
	}
}

func TestOptions_NilCallbacksIgnored(t *testing.T) {
	cfg, err := newRunConfig([]Option{
		WithBatchCallback(nil),
		WithProgressCallback(nil),
	})
	if err != nil {
		t.Fatalf("newRunConfig() error = %v", err)
	}

	if len(cfg.batchCallbacks) != 0 {
		t.Errorf("len(batchCallbacks) = %d, want 0", len(cfg.batchCallbacks))
	}
	if len(cfg.progressCallbacks) != 0 {
		t.Errorf("len(progressCallbacks) = %d, want 0", len(cfg.progressCallbacks))
	}
}
