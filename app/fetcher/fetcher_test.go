package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const calendarBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nDTSTART:20260312T060000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func TestFetch_Success(t *testing.T) {
	var gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/calendar")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(calendarBody))
	}))
	defer server.Close()

	client := NewClient("RosterWatch/1.0")
	body, err := client.Fetch(context.Background(), server.URL, "", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if body != calendarBody {
		t.Errorf("Body mismatch")
	}
	if gotAccept != "text/calendar" {
		t.Errorf("Expected Accept: text/calendar, got %q", gotAccept)
	}
}

func TestFetch_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "crew" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(calendarBody))
	}))
	defer server.Close()

	client := NewClient("RosterWatch/1.0")

	if _, err := client.Fetch(context.Background(), server.URL, "crew", "secret"); err != nil {
		t.Errorf("Expected success with credentials, got %v", err)
	}

	_, err := client.Fetch(context.Background(), server.URL, "crew", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestFetch_ErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"server error", http.StatusInternalServerError, ErrServer},
		{"bad gateway", http.StatusBadGateway, ErrServer},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		client := NewClient("RosterWatch/1.0")
		_, err := client.Fetch(context.Background(), server.URL, "", "")
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		server.Close()
	}
}

func TestFetch_MalformedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>login required</body></html>"))
	}))
	defer server.Close()

	client := NewClient("RosterWatch/1.0")
	_, err := client.Fetch(context.Background(), server.URL, "", "")
	if !errors.Is(err, ErrMalformedContent) {
		t.Errorf("Expected ErrMalformedContent for a non-calendar 200, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "text/html") {
		t.Errorf("Error should carry the offending content type, got %v", err)
	}
}

func TestFetch_NetworkUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient("RosterWatch/1.0")
	_, err := client.Fetch(context.Background(), server.URL, "", "")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Expected ErrNetwork for a refused connection, got %v", err)
	}
}
