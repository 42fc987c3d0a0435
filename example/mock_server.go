package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// user is the record served by the mock API.
type user struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

// StartMockUsersAPI serves total users on addr, paginated by offset/limit:
//
//	GET /users?offset=0&limit=10 -> {"data": {"users": [...]}}
//
// Call this in a goroutine before running the example.
func StartMockUsersAPI(addr string, total int) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit < 1 {
			limit = 10
		}

		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		users := []user{}
		for i := offset; i < offset+limit && i < total; i++ {
			users = append(users, user{ID: i + 1, Email: fmt.Sprintf("user%d@example.com", i+1)})
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"data": map[string]any{"users": users}}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
