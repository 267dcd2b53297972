// Package remote reads the dataset as a CSV resource over HTTP.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"plndash/internal/core"
	"plndash/internal/source"
)

// DefaultURL is the published PLN sales dataset.
const DefaultURL = "https://raw.githubusercontent.com/lintangbhskr/streamlit_bps/refs/heads/main/data_pln_clean.csv"

// maxBodyBytes bounds the CSV download.
const maxBodyBytes = 32 << 20

// Client fetches a CSV file from a fixed URL.
type Client struct {
	url      string
	http     *http.Client
	maxBytes int64
}

var _ source.TableReader = (*Client)(nil)

// New returns a client for url. A nil httpClient uses a pooled client with
// transport timeouts; the overall deadline comes from the caller's context.
func New(url string, httpClient *http.Client) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("missing data url")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported data url %q: must be http or https", url)
	}
	if httpClient == nil {
		httpClient = newHTTPClientWithPooling()
	}
	return &Client{url: url, http: httpClient, maxBytes: maxBodyBytes}, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and per-phase timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{Transport: transport}
}

// Describe returns the source URL.
func (c *Client) Describe() string { return c.url }

// ReadTable downloads and parses the CSV.
func (c *Client) ReadTable(ctx context.Context) (*core.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, fmt.Errorf("fetch %s: unexpected status %s", c.url, resp.Status)
	}

	// One byte past the cap tells a complete body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.url, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("fetch %s: dataset exceeds %d bytes", c.url, c.maxBytes)
	}

	t, err := source.ParseCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.url, err)
	}
	return t, nil
}
