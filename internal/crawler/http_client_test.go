package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/masahif/sitegraph/internal/site"
)

const testMaxBody = 1 << 20

func TestHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check User-Agent
		if ua := r.Header.Get("User-Agent"); ua != "Test-Crawler/1.0" {
			t.Errorf("Expected User-Agent 'Test-Crawler/1.0', got '%s'", ua)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		// Add delay to test TTFB
		time.Sleep(50 * time.Millisecond)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body>Test Page</body></html>"))
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 30*time.Second, testMaxBody)
	defer client.Close()

	page, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to fetch URL: %v", err)
	}

	if page.StatusCode != 200 {
		t.Errorf("Expected status code 200, got %d", page.StatusCode)
	}

	if page.ContentType != "text/html; charset=utf-8" {
		t.Errorf("Expected content type 'text/html; charset=utf-8', got '%s'", page.ContentType)
	}

	u, _ := url.Parse(server.URL)
	if page.Site != site.Normalize(u.Host) {
		t.Errorf("Expected site %q, got %q", site.Normalize(u.Host), page.Site)
	}

	if page.Metrics.TTFB < 50*time.Millisecond {
		t.Errorf("TTFB should be at least 50ms, got %v", page.Metrics.TTFB)
	}

	if page.Metrics.DownloadTime < page.Metrics.TTFB {
		t.Errorf("Download time should be greater than TTFB")
	}

	expectedBody := "<html><body>Test Page</body></html>"
	if string(page.Body) != expectedBody {
		t.Errorf("Expected body '%s', got '%s'", expectedBody, string(page.Body))
	}

	if page.ContentHash == "" {
		t.Error("Expected non-empty content hash")
	}
}

func TestHTTPClientRedirect(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/final" {
			redirectCount++
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Final page"))
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 30*time.Second, testMaxBody)
	defer client.Close()

	page, err := client.Fetch(context.Background(), server.URL+"/start")
	if err != nil {
		t.Fatalf("Failed to fetch URL: %v", err)
	}

	if redirectCount != 1 {
		t.Errorf("Expected 1 redirect, got %d", redirectCount)
	}

	if page.URL != server.URL+"/final" {
		t.Errorf("Expected final URL '%s', got '%s'", server.URL+"/final", page.URL)
	}
}

func TestHTTPClientRedirectLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 30*time.Second, testMaxBody)
	defer client.Close()

	_, err := client.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Errorf("Expected ErrTooManyRedirects, got %v", err)
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewHTTPClient("Test-Crawler/1.0", 200*time.Millisecond, testMaxBody)
	defer client.Close()

	start := time.Now()
	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Errorf("Expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Timeout not honored, took %v", elapsed)
	}
}

func TestHTTPClientRejectsNonHTML(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{"json", "application/json"},
		{"image", "image/png"},
		{"plain text", "text/plain; charset=utf-8"},
		{"missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
			}))
			defer server.Close()

			client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second, testMaxBody)
			defer client.Close()

			_, err := client.Fetch(context.Background(), server.URL)
			if !errors.Is(err, ErrNotHTML) {
				t.Errorf("Expected ErrNotHTML, got %v", err)
			}
		})
	}
}

func TestHTTPClientAcceptsXHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "Application/XHTML+XML; charset=utf-8")
		_, _ = w.Write([]byte("<html/>"))
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second, testMaxBody)
	defer client.Close()

	if _, err := client.Fetch(context.Background(), server.URL); err != nil {
		t.Errorf("Expected XHTML to be accepted, got %v", err)
	}
}

func TestHTTPClientBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second, 1024)
	defer client.Close()

	_, err := client.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("Expected ErrBodyTooLarge, got %v", err)
	}
}

func TestHTTPClientErrorCases(t *testing.T) {
	client := NewHTTPClient("Test-Crawler/1.0", 5*time.Second, testMaxBody)
	defer client.Close()

	ctx := context.Background()

	// Test invalid URL
	if _, err := client.Fetch(ctx, "invalid-url"); err == nil {
		t.Errorf("Expected error for invalid URL, got nil")
	}

	// Server errors with an HTML body are still pages
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<a href="https://status.example.com/">status</a>`))
	}))
	defer server.Close()

	page, err := client.Fetch(ctx, server.URL)
	if err != nil {
		t.Errorf("Unexpected error for server error response: %v", err)
	} else if page.StatusCode != 500 {
		t.Errorf("Expected status code 500, got %d", page.StatusCode)
	}

	// Test cancelled context
	cancelledCtx, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := client.Fetch(cancelledCtx, server.URL); err == nil {
		t.Errorf("Expected error for cancelled context, got nil")
	}
}
