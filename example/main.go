package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jpalmerr/batchflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// 1. in-memory slice, two workers
	words := strings.Fields("the quick brown fox jumps over the lazy dog")
	err := batchflow.ProcessSlice(ctx, words, batchflow.Config{Size: 2, Concurrency: 2},
		func(ctx context.Context, batch []string, offset int) error {
			fmt.Printf("offset %d: %s\n", offset, strings.Join(batch, " "))
			return nil
		},
		batchflow.WithLogger(logger),
	)
	if err != nil {
		logger.Error("slice example failed", "error", err)
		os.Exit(1)
	}

	// 2. paginated HTTP API (see mock_server.go), four workers
	go StartMockUsersAPI(":9998", 95)
	time.Sleep(100 * time.Millisecond)

	fetchUsers := func(ctx context.Context, offset, size int) ([]user, error) {
		url := fmt.Sprintf("http://localhost:9998/users?offset=%d&limit=%d", offset, size)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		var page struct {
			Data struct {
				Users []user `json:"users"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, err
		}
		return page.Data.Users, nil
	}

	err = batchflow.Process(ctx, fetchUsers, batchflow.Config{Size: 10, Concurrency: 4},
		func(ctx context.Context, users []user, offset int) error {
			// stand-in for real work
			time.Sleep(50 * time.Millisecond)
			return nil
		},
		batchflow.WithName("users-demo"),
		batchflow.WithLogger(logger),
		batchflow.WithProgressCallback(func(p batchflow.ProgressSnapshot) {
			fmt.Printf("  %3d users in %2d batches (%.0f/s)\n", p.ProcessedItems, p.ProcessedBatches, p.ItemsPerSecond)
		}),
	)
	if err != nil {
		logger.Error("http example failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("done")
}
