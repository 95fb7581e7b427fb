package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ResponseToEntry converts a page response to a PageEntry that lives for
// ttl, or until the response's Expires header if that is sooner.
// The response body is restored after reading.
func ResponseToEntry(resp *http.Response, ttl time.Duration) (*PageEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	return &PageEntry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		CachedAt:   now,
		Expires:    expiresAt(resp.Header, now, ttl),
	}, nil
}

// expiresAt caps now+ttl by a parseable Expires header.
func expiresAt(headers http.Header, now time.Time, ttl time.Duration) time.Time {
	limit := now.Add(ttl)

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return limit
	}
	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return limit
	}
	if expires.Before(now) {
		return now
	}
	if expires.Before(limit) {
		return expires
	}
	return limit
}
