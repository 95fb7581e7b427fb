// Package planner turns an endpoint definition, plus any already fetched
// driving dataset, into the request URLs needed to retrieve it.
package planner

import (
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/Sternrassler/odata-export/pkg/config"
	"github.com/Sternrassler/odata-export/pkg/dataset"
)

// DefaultChunkSize is the number of driving values per request predicate.
const DefaultChunkSize = config.DefaultChunkSize

// Request describes one logical request against an endpoint.
type Request struct {
	// Endpoint is the endpoint name.
	Endpoint string

	// URL is the fully qualified, encoded request URL.
	URL string

	// Filter is the unencoded $filter predicate, empty if none.
	Filter string

	// Select is the unencoded $select clause, empty if none.
	Select string

	// Chunk is the zero based chunk index; 0 for unchunked requests.
	Chunk int

	// Keys holds the driving values referenced by Filter.
	Keys []string
}

// Store resolves driving datasets.
type Store interface {
	Get(name string) (*dataset.Dataset, error)
}

// Planner builds request sequences.
type Planner struct {
	baseURL   string
	chunkSize int
}

// New creates a planner for baseURL. A chunkSize below 1 uses DefaultChunkSize.
func New(baseURL string, chunkSize int) *Planner {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Planner{baseURL: baseURL, chunkSize: chunkSize}
}

// Plan returns the requests for ep. An endpoint without a key filter yields
// exactly one request. A keyed endpoint yields one request per chunk of
// distinct driving values, in first-seen order, and none if there are no
// driving values. The driving dataset is read before Plan returns.
func (p *Planner) Plan(ep config.Endpoint, store Store) (iter.Seq[Request], error) {
	selectClause := strings.Join(ep.Select, ",")

	if ep.KeyFilter == "" {
		req := p.request(ep.Name, ep.Filter, selectClause)
		return func(yield func(Request) bool) {
			yield(req)
		}, nil
	}

	if ep.DrivingSource == nil {
		return nil, &config.ConfigError{
			Field:  "endpoints." + ep.Name,
			Reason: "key_filter without driving_source",
		}
	}
	driver, err := store.Get(ep.DrivingSource.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("plan %s: driving dataset: %w", ep.Name, err)
	}
	keys := DistinctValues(driver, ep.DrivingSource.Column)

	return func(yield func(Request) bool) {
		for i, chunk := range Chunk(keys, p.chunkSize) {
			filter := KeyPredicate(ep.KeyFilter, chunk)
			if ep.Filter != "" {
				filter = "(" + filter + ") and (" + ep.Filter + ")"
			}
			req := p.request(ep.Name, filter, selectClause)
			req.Chunk = i
			req.Keys = chunk
			if !yield(req) {
				return
			}
		}
	}, nil
}

func (p *Planner) request(endpoint, filter, selectClause string) Request {
	return Request{
		Endpoint: endpoint,
		URL:      BuildURL(p.baseURL, endpoint, filter, selectClause),
		Filter:   filter,
		Select:   selectClause,
	}
}

// BuildURL assembles {base}{endpoint}?$filter=...&$select=... with each
// clause present only when non-empty.
func BuildURL(baseURL, endpoint, filter, selectClause string) string {
	var b strings.Builder
	b.WriteString(baseURL)
	b.WriteString(endpoint)
	b.WriteByte('?')
	if filter != "" {
		b.WriteString("$filter=")
		b.WriteString(escape(filter))
	}
	if selectClause != "" {
		if filter != "" {
			b.WriteByte('&')
		}
		b.WriteString("$select=")
		b.WriteString(escape(selectClause))
	}
	return b.String()
}

// escape percent-encodes a query value, using %20 for spaces and keeping
// the commas of a select list.
func escape(s string) string {
	e := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	return strings.ReplaceAll(e, "%2C", ",")
}

// DistinctValues returns the non-null values of col as strings, deduplicated
// in first-seen order.
func DistinctValues(ds *dataset.Dataset, col string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range ds.Column(col) {
		s, ok := dataset.Stringify(v)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Chunk splits values into consecutive groups of at most size elements.
func Chunk(values []string, size int) [][]string {
	if size < 1 {
		size = DefaultChunkSize
	}
	chunks := make([][]string, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// KeyPredicate ORs equality tests of column against each value.
func KeyPredicate(column string, values []string) string {
	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = fmt.Sprintf("%s eq '%s'", column, strings.ReplaceAll(v, "'", "''"))
	}
	return strings.Join(terms, " or ")
}
