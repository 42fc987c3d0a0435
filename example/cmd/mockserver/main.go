// Standalone paginated mock API for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/batchflow run -c example/job.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	total := flag.Int("total", 250, "number of orders served")
	pageSize := flag.Int("page-size", 20, "orders per page for /orders/pages/{n}")
	failPage := flag.Int("fail-page", -1, "page that answers 503 (-1 disables)")
	flag.Parse()

	fmt.Printf("Mock orders API starting on %s (%d orders)\n", *addr, *total)
	fmt.Println("  GET /orders?offset=N&limit=M")
	fmt.Println("  GET /orders/pages/{n}")
	fmt.Println("  POST /ingest")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	slice := func(start, limit int) []map[string]any {
		orders := []map[string]any{}
		for i := start; i < start+limit && i < *total; i++ {
			orders = append(orders, map[string]any{"id": i + 1, "amount_cents": 100 * (i%17 + 1)})
		}
		return orders
	}

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit < 1 {
			limit = 20
		}
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)
		writeJSON(w, map[string]any{"orders": slice(offset, limit)})
	})

	mux.HandleFunc("GET /orders/pages/{n}", func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.PathValue("n"))
		if err != nil || page < 0 {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		if page == *failPage {
			slog.Warn("failing page on purpose", "page", page)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)
		writeJSON(w, map[string]any{"page": page, "orders": slice(page**pageSize, *pageSize)})
	})

	mux.HandleFunc("POST /ingest", func(w http.ResponseWriter, r *http.Request) {
		var batch struct {
			Key   int               `json:"key"`
			Items []json.RawMessage `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("batch received", "key", batch.Key, "items", len(batch.Items))
		w.WriteHeader(http.StatusAccepted)
	})

	if err := http.ListenAndServe(*addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
