// Package config loads the declarative pipeline definition: API settings,
// endpoint definitions, transform steps, output mapping and export target.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/Sternrassler/odata-export/pkg/format"
	"github.com/Sternrassler/odata-export/pkg/transform"
	"gopkg.in/yaml.v3"
)

// Defaults applied to unset fields.
const (
	DefaultChunkSize    = 10
	DefaultTimeout      = 120 * time.Second
	DefaultPageSizeHint = "odata.maxpagesize=100000"
	DefaultConnection   = "close"
	DefaultGrantType    = "client_credentials"
	DefaultExportDir    = "./output"
	DefaultExportPrefix = "api_export"
	DefaultExportTable  = "export"
	DefaultCacheTTL     = 5 * time.Minute
)

// Export formats.
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Pipeline is the complete declarative definition of one export.
type Pipeline struct {
	API       API        `yaml:"api"`
	Endpoints []Endpoint `yaml:"endpoints"`
	Transform Transform  `yaml:"transform"`
	Output    Output     `yaml:"output"`
	Export    Export     `yaml:"export"`
	Cache     Cache      `yaml:"cache"`
}

// API holds the resource server and identity provider settings.
type API struct {
	BaseURL      string        `yaml:"base_url"`
	TokenURL     string        `yaml:"token_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Scope        string        `yaml:"scope"`
	GrantType    string        `yaml:"grant_type"`
	Timeout      time.Duration `yaml:"timeout"`

	// ChunkSize bounds the number of driving values per request predicate.
	ChunkSize int `yaml:"chunk_size"`

	// PageSizeHint is sent as the Prefer header.
	PageSizeHint string `yaml:"page_size_hint"`

	// Connection is sent as the Connection header.
	Connection string `yaml:"connection"`
}

// Endpoint describes one resource collection to fetch.
type Endpoint struct {
	Name   string   `yaml:"name"`
	Select []string `yaml:"select"`
	Filter string   `yaml:"filter"`

	// KeyFilter is the column of this endpoint constrained by DrivingSource.
	KeyFilter     string         `yaml:"key_filter"`
	DrivingSource *DrivingSource `yaml:"driving_source"`

	// Rename is applied to the materialized dataset before it is stored.
	Rename []ColumnRename `yaml:"rename"`
}

// DrivingSource points at the dataset column whose values constrain a
// dependent endpoint.
type DrivingSource struct {
	Endpoint string `yaml:"endpoint"`
	Column   string `yaml:"column"`
}

// ColumnRename renames one materialized column.
type ColumnRename struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Transform holds the base dataset and the ordered steps applied to it.
type Transform struct {
	Base  string `yaml:"base"`
	Steps []Step `yaml:"steps"`
}

// Output configures the final projection and post-processing.
type Output struct {
	Columns   []format.Mapping             `yaml:"columns"`
	DateTime  *format.DateTime             `yaml:"datetime"`
	Booleans  []string                     `yaml:"booleans"`
	ValueMaps map[string]map[string]string `yaml:"value_maps"`
}

// Export configures the written artifact.
type Export struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
	Prefix string `yaml:"prefix"`
	Table  string `yaml:"table"`
}

// Cache configures the optional Redis page cache. An empty RedisAddr
// disables it.
type Cache struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// UnmarshalYAML accepts either a mapping or the short form "endpoint.column".
func (d *DrivingSource) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		endpoint, column, ok := strings.Cut(value.Value, ".")
		if !ok || endpoint == "" || column == "" {
			return fmt.Errorf("line %d: driving_source %q must be endpoint.column", value.Line, value.Value)
		}
		d.Endpoint, d.Column = endpoint, column
		return nil
	}

	type plain DrivingSource
	return value.Decode((*plain)(d))
}

// String returns the short form.
func (d DrivingSource) String() string {
	return d.Endpoint + "." + d.Column
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Bare $
// is left alone because OData expressions may contain it.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads, expands, parses and validates a pipeline file.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a pipeline definition, applies defaults and validates it.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(expandEnv(data), &p); err != nil {
		return nil, &ConfigError{Field: "yaml", Reason: "decode failed", Err: err}
	}
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyDefaults fills unset fields.
func (p *Pipeline) ApplyDefaults() {
	if p.API.ChunkSize == 0 {
		p.API.ChunkSize = DefaultChunkSize
	}
	if p.API.Timeout == 0 {
		p.API.Timeout = DefaultTimeout
	}
	if p.API.PageSizeHint == "" {
		p.API.PageSizeHint = DefaultPageSizeHint
	}
	if p.API.Connection == "" {
		p.API.Connection = DefaultConnection
	}
	if p.API.GrantType == "" {
		p.API.GrantType = DefaultGrantType
	}
	if p.Export.Dir == "" {
		p.Export.Dir = DefaultExportDir
	}
	if p.Export.Format == "" {
		p.Export.Format = FormatCSV
	}
	if p.Export.Prefix == "" {
		p.Export.Prefix = DefaultExportPrefix
	}
	if p.Export.Table == "" {
		p.Export.Table = DefaultExportTable
	}
	if p.Cache.TTL == 0 {
		p.Cache.TTL = DefaultCacheTTL
	}
	if p.Output.DateTime != nil {
		p.Output.DateTime.ApplyDefaults()
	}
}

// Endpoint returns the endpoint definition named name.
func (p *Pipeline) Endpoint(name string) (Endpoint, bool) {
	for _, ep := range p.Endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// Ops returns the transform steps as operations.
func (p *Pipeline) Ops() []transform.Op {
	ops := make([]transform.Op, len(p.Transform.Steps))
	for i, s := range p.Transform.Steps {
		ops[i] = s.Op
	}
	return ops
}

// Columns returns the endpoint's materialized column names after Rename.
func (e Endpoint) Columns() []string {
	cols := make([]string, len(e.Select))
	copy(cols, e.Select)
	for _, r := range e.Rename {
		for i, c := range cols {
			if c == r.From {
				cols[i] = r.To
			}
		}
	}
	return cols
}
