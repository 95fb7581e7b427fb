// Package testutil provides an in-process OData resource server and token
// endpoint for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// TokenPath is the path of the mock token endpoint.
const TokenPath = "/oauth2/token"

// RecordedRequest captures one resource request.
type RecordedRequest struct {
	Path          string
	Filter        string
	Select        string
	SkipToken     string
	Authorization string
	Prefer        string
	Status        int
}

// MockOData is a configurable mock OData server with a client-credentials
// token endpoint.
type MockOData struct {
	server *httptest.Server
	mu     sync.RWMutex

	collections map[string][]map[string]any
	handlers    map[string]http.HandlerFunc
	rejectNext  map[string]int

	validToken  string
	tokensIssue int
	tokenStatus int
	tokenForms  []url.Values

	// PageSize limits rows per page; 0 serves everything in one page.
	PageSize int

	requests []RecordedRequest
}

// NewMockOData creates and starts a mock server.
func NewMockOData() *MockOData {
	mock := &MockOData{
		collections: make(map[string][]map[string]any),
		handlers:    make(map[string]http.HandlerFunc),
		rejectNext:  make(map[string]int),
		tokenStatus: http.StatusOK,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the server root URL.
func (m *MockOData) URL() string {
	return m.server.URL
}

// BaseURL returns the resource base URL, ending in a slash.
func (m *MockOData) BaseURL() string {
	return m.server.URL + "/"
}

// TokenURL returns the token endpoint URL.
func (m *MockOData) TokenURL() string {
	return m.server.URL + TokenPath
}

// Close shuts down the mock server.
func (m *MockOData) Close() {
	m.server.Close()
}

// SetCollection serves rows at /{name}.
func (m *MockOData) SetCollection(name string, rows []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = rows
}

// SetHandler overrides the handler for a path.
func (m *MockOData) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// RejectNext makes the next n requests to path fail with 401.
func (m *MockOData) RejectNext(path string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectNext[path] = n
}

// SetTokenStatus makes the token endpoint answer with status.
func (m *MockOData) SetTokenStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenStatus = status
}

// TokensIssued returns how many tokens the endpoint has handed out.
func (m *MockOData) TokensIssued() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokensIssue
}

// TokenForms returns the form bodies posted to the token endpoint.
func (m *MockOData) TokenForms() []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.tokenForms...)
}

// Requests returns the resource requests received so far.
func (m *MockOData) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestsFor returns the resource requests made to path.
func (m *MockOData) RequestsFor(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range m.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (m *MockOData) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == TokenPath {
		m.serveToken(w, r)
		return
	}

	q := r.URL.Query()
	rec := RecordedRequest{
		Path:          r.URL.Path,
		Filter:        q.Get("$filter"),
		Select:        q.Get("$select"),
		SkipToken:     q.Get("$skiptoken"),
		Authorization: r.Header.Get("Authorization"),
		Prefer:        r.Header.Get("Prefer"),
	}

	m.mu.Lock()
	status := http.StatusOK
	if n := m.rejectNext[r.URL.Path]; n > 0 {
		m.rejectNext[r.URL.Path] = n - 1
		status = http.StatusUnauthorized
	} else if m.validToken == "" || rec.Authorization != "Bearer "+m.validToken {
		status = http.StatusUnauthorized
	}
	handler, custom := m.handlers[r.URL.Path]
	rows, known := m.collections[strings.TrimPrefix(r.URL.Path, "/")]
	pageSize := m.PageSize
	if status == http.StatusOK && !custom && !known {
		status = http.StatusNotFound
	}
	rec.Status = status
	m.requests = append(m.requests, rec)
	m.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if custom {
		handler(w, r)
		return
	}

	matched := filterRows(rows, rec.Filter)
	start, _ := strconv.Atoi(rec.SkipToken)
	end := len(matched)
	if pageSize > 0 && start+pageSize < end {
		end = start + pageSize
	}
	if start > len(matched) {
		start = len(matched)
	}

	body := map[string]any{"value": selectColumns(matched[start:end], rec.Select)}
	if end < len(matched) {
		next := *r.URL
		nq := next.Query()
		nq.Set("$skiptoken", strconv.Itoa(end))
		next.RawQuery = nq.Encode()
		body["@odata.nextLink"] = m.server.URL + next.RequestURI()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(body)
}

func (m *MockOData) serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.tokenForms = append(m.tokenForms, r.PostForm)
	status := m.tokenStatus
	var token string
	if status == http.StatusOK {
		m.tokensIssue++
		token = fmt.Sprintf("token-%d", m.tokensIssue)
		m.validToken = token
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		w.Write([]byte(`{"error": "invalid_client"}`))
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

var eqTerm = regexp.MustCompile(`(\w+) eq '((?:[^']|'')*)'`)

// filterRows applies a predicate made of `col eq 'v'` terms: terms on the
// same column are ORed, different columns are ANDed.
func filterRows(rows []map[string]any, filter string) []map[string]any {
	if filter == "" {
		return rows
	}
	allowed := make(map[string]map[string]bool)
	for _, m := range eqTerm.FindAllStringSubmatch(filter, -1) {
		if allowed[m[1]] == nil {
			allowed[m[1]] = make(map[string]bool)
		}
		allowed[m[1]][strings.ReplaceAll(m[2], "''", "'")] = true
	}

	var out []map[string]any
	for _, row := range rows {
		keep := true
		for col, values := range allowed {
			if !values[fmt.Sprint(row[col])] {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

func selectColumns(rows []map[string]any, sel string) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	if sel == "" {
		return append(out, rows...)
	}
	cols := strings.Split(sel, ",")
	for _, row := range rows {
		projected := make(map[string]any, len(cols))
		for _, c := range cols {
			if v, ok := row[c]; ok {
				projected[c] = v
			}
		}
		out = append(out, projected)
	}
	return out
}
