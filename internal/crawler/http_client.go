package crawler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/masahif/sitegraph/internal/site"
)

// Fetch failures. All of them collapse to a failed claim in the crawler.
var (
	// ErrNotHTML is returned for responses whose Content-Type is not HTML
	ErrNotHTML = errors.New("response is not HTML")
	// ErrBodyTooLarge is returned when the body exceeds the configured limit
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrTooManyRedirects is returned after maxRedirects hops
	ErrTooManyRedirects = errors.New("too many redirects")
)

const maxRedirects = 10

// HTTPClient fetches pages over HTTP and implements Fetcher.
type HTTPClient struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// HTTPMetrics contains performance metrics for an HTTP request
type HTTPMetrics struct {
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
	DNSLookup    time.Duration // DNS lookup time
	TCPConnect   time.Duration // TCP connection time
	TLSHandshake time.Duration // TLS handshake time
}

// Compile-time interface verification.
var _ Fetcher = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client. timeout bounds the whole exchange
// including redirects and the body read.
func NewHTTPClient(userAgent string, timeout time.Duration, maxBodySize int64) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: timeout,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}

	return &HTTPClient{
		client:      client,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
	}
}

// Fetch performs a GET request and returns the page if the final response is
// HTML. Non-HTML content, transport errors, oversized and unreadable bodies
// are reported as errors. The status code is recorded but not judged.
func (h *HTTPClient) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1")

	var metrics HTTPMetrics
	var dnsStart, connectStart, tlsStart, firstByteTime time.Time

	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			metrics.DNSLookup = time.Since(dnsStart)
		},
		ConnectStart: func(network, addr string) {
			connectStart = time.Now()
		},
		ConnectDone: func(network, addr string, err error) {
			metrics.TCPConnect = time.Since(connectStart)
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			metrics.TLSHandshake = time.Since(tlsStart)
		},
		GotFirstResponseByte: func() {
			firstByteTime = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	startTime := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if !firstByteTime.IsZero() {
		metrics.TTFB = firstByteTime.Sub(startTime)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrNotHTML, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > h.maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, h.maxBodySize)
	}
	metrics.DownloadTime = time.Since(startTime)

	finalURL := resp.Request.URL

	return &Page{
		URL:         finalURL.String(),
		Site:        site.Normalize(finalURL.Host),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		ContentHash: strconv.FormatUint(xxhash.Sum64(body), 16),
		Body:        body,
		Metrics:     metrics,
	}, nil
}

// Close closes idle connections
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}

// isHTML accepts text/html and application/xhtml+xml media types.
func isHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
