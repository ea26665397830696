package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gridtask/backend"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Token: "tok"}); err == nil {
		t.Error("missing base URL accepted")
	}
	if _, err := New(Config{BaseURL: "http://x"}); err == nil {
		t.Error("missing token accepted")
	}
	if _, err := New(Config{BaseURL: "http://x", Token: "tok"}); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("owner"); got != "owner-1" {
			t.Errorf("owner = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]backend.RemoteRow{
			{ID: "a", OwnerID: "owner-1", Text: "one", Version: 3},
		})
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Token: "secret"})
	rows, err := c.FetchAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "a" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestFetchAllEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Token: "t"})
	rows, err := c.FetchAll(context.Background(), "o")
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if rows == nil {
		t.Error("nil slice returned; callers expect an empty slice")
	}
}

func TestFetchAllUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Token: "expired"})
	if _, err := c.FetchAll(context.Background(), "o"); err == nil {
		t.Error("unauthorized response not surfaced")
	}
}

func TestUpsertAllStampsOwner(t *testing.T) {
	var received []backend.RemoteRow
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/v1/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Token: "t"})
	rows := []backend.RemoteRow{{ID: "a"}, {ID: "b"}}
	if err := c.UpsertAll(context.Background(), "owner-1", rows); err != nil {
		t.Fatalf("UpsertAll: %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("received %d rows", len(received))
	}
	for _, r := range received {
		if r.OwnerID != "owner-1" {
			t.Errorf("row %s owner = %q, want stamped", r.ID, r.OwnerID)
		}
	}
}

func TestDeleteMissingRowIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/v1/tasks/gone" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Token: "t"})
	if err := c.Delete(context.Background(), "o", "gone"); err != nil {
		t.Errorf("delete of a missing row = %v, want nil", err)
	}
}

func TestDeleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Token: "t"})
	if err := c.Delete(context.Background(), "o", "a"); err == nil {
		t.Error("server error not surfaced")
	}
}

func TestRateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, Token: "t", MaxRetries: 2, RetryDelay: time.Millisecond})
	if _, err := c.FetchAll(context.Background(), "o"); err != nil {
		t.Fatalf("FetchAll after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want retried once", calls.Load())
	}
}
