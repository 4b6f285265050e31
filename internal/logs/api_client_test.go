package logs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"tsencode/internal/api"
	"tsencode/internal/logs"
)

func TestNewStreamClientEmptyBind(t *testing.T) {
	client, err := logs.NewStreamClient("", "")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Fetch(context.Background(), logs.StreamQuery{}); !errors.Is(err, logs.ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable from nil client, got %v", err)
	}
}

func TestStreamClientFetchBuildsQueryAndDecodes(t *testing.T) {
	var (
		gotQuery url.Values
		gotAuth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/logs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []api.LogEvent{{Sequence: 41, Level: "INFO", Message: "hello"}},
			Next:   42,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "tok")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}
	resp, err := client.Fetch(context.Background(), logs.StreamQuery{
		Since:     3,
		Limit:     50,
		Follow:    true,
		Tail:      true,
		Component: "encodemanager",
		JobID:     99,
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if resp.Next != 42 || len(resp.Events) != 1 || resp.Events[0].Message != "hello" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	want := map[string]string{"since": "3", "limit": "50", "follow": "1", "tail": "1", "component": "encodemanager", "job": "99"}
	for key, value := range want {
		if gotQuery.Get(key) != value {
			t.Fatalf("query %s: expected %q, got %q", key, value, gotQuery.Get(key))
		}
	}
}

func TestStreamClientReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := logs.NewStreamClient(srv.URL, "")
	_, err := client.Fetch(context.Background(), logs.StreamQuery{})
	if err == nil {
		t.Fatal("expected error")
	}
	if logs.IsAPIUnavailable(err) {
		t.Fatal("an HTTP error response is not an unreachable API")
	}
}

func TestIsAPIUnavailableForConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	client, _ := logs.NewStreamClient(addr, "")
	_, err := client.Fetch(context.Background(), logs.StreamQuery{})
	if !logs.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
