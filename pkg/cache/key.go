package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys.
const KeyPrefix = "odata"

// PageKey identifies one cached result page.
type PageKey struct {
	// Endpoint is the configured endpoint name (e.g., "orders")
	Endpoint string

	// Path is the request path on the resource server
	Path string

	// QueryParams are the query parameters ($filter, $select, $skiptoken, ...)
	QueryParams url.Values
}

// KeyFromURL builds a key for a request URL. An unparsable URL yields a key
// holding the raw string as its path.
func KeyFromURL(endpoint, rawURL string) PageKey {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PageKey{Endpoint: endpoint, Path: rawURL}
	}
	return PageKey{
		Endpoint:    endpoint,
		Path:        u.Host + u.Path,
		QueryParams: u.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: odata:endpoint:path:query1=val1:query2=val2
//
// Example:
//
//	odata:orders:api.example.com/v1/orders:$select=order_id,status
func (k PageKey) String() string {
	parts := []string{KeyPrefix}

	if k.Endpoint != "" {
		parts = append(parts, k.Endpoint)
	}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, path)
	}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
