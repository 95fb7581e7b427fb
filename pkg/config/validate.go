package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/Sternrassler/odata-export/pkg/transform"
)

// Validate checks the definition and returns the first ConfigError found.
func (p *Pipeline) Validate() error {
	if p.API.BaseURL == "" {
		return configErr("api.base_url", "is required")
	}
	if p.API.TokenURL == "" {
		return configErr("api.token_url", "is required")
	}
	if p.API.ClientID == "" {
		return configErr("api.client_id", "is required")
	}
	if p.API.ChunkSize < 1 {
		return configErr("api.chunk_size", "must be >= 1 (got %d)", p.API.ChunkSize)
	}
	if p.API.GrantType != DefaultGrantType {
		return configErr("api.grant_type", "unsupported grant type %q", p.API.GrantType)
	}

	if err := p.validateEndpoints(); err != nil {
		return err
	}
	if _, err := p.ExecutionOrder(); err != nil {
		return err
	}
	if err := p.validateTransform(); err != nil {
		return err
	}
	return p.validateOutput()
}

func (p *Pipeline) validateEndpoints() error {
	if len(p.Endpoints) == 0 {
		return configErr("endpoints", "at least one endpoint is required")
	}

	seen := make(map[string]bool, len(p.Endpoints))
	for i, ep := range p.Endpoints {
		field := fmt.Sprintf("endpoints[%d]", i)
		if ep.Name == "" {
			return configErr(field+".name", "is required")
		}
		if seen[ep.Name] {
			return configErr(field+".name", "duplicate endpoint %q", ep.Name)
		}
		seen[ep.Name] = true

		if len(ep.Select) == 0 {
			return configErr(field+".select", "endpoint %q selects no columns", ep.Name)
		}
		if (ep.KeyFilter == "") != (ep.DrivingSource == nil) {
			return configErr(field, "endpoint %q: key_filter and driving_source must be set together", ep.Name)
		}
		for j, r := range ep.Rename {
			if r.From == "" || r.To == "" {
				return configErr(fmt.Sprintf("%s.rename[%d]", field, j), "from and to are required")
			}
		}
	}

	for i, ep := range p.Endpoints {
		if ep.DrivingSource == nil {
			continue
		}
		field := fmt.Sprintf("endpoints[%d].driving_source", i)
		ds := ep.DrivingSource
		if ds.Endpoint == ep.Name {
			return configErr(field, "endpoint %q cannot drive itself", ep.Name)
		}
		driver, ok := p.Endpoint(ds.Endpoint)
		if !ok {
			return configErr(field, "unknown endpoint %q", ds.Endpoint)
		}
		if !slices.Contains(driver.Columns(), ds.Column) {
			return configErr(field, "endpoint %q has no column %q", ds.Endpoint, ds.Column)
		}
	}
	return nil
}

func (p *Pipeline) validateTransform() error {
	if p.Transform.Base == "" {
		return configErr("transform.base", "is required")
	}
	if _, ok := p.Endpoint(p.Transform.Base); !ok {
		return configErr("transform.base", "unknown endpoint %q", p.Transform.Base)
	}

	for i, s := range p.Transform.Steps {
		field := fmt.Sprintf("transform.steps[%d]", i)
		switch op := s.Op.(type) {
		case transform.Rename:
			if op.From == "" || op.To == "" {
				return configErr(field, "rename needs from and to")
			}
		case transform.Cast:
			if op.Column == "" {
				return configErr(field, "cast needs a column")
			}
		case transform.Join:
			if op.LeftKey == "" || op.RightKey == "" {
				return configErr(field, "join needs left_key and right_key")
			}
			if _, ok := p.Endpoint(op.Dataset); !ok {
				return configErr(field, "join references unknown dataset %q", op.Dataset)
			}
		default:
			return &ConfigError{Field: field, Reason: fmt.Sprintf("%T", s.Op), Err: transform.ErrUnknownOp}
		}
	}
	return nil
}

func (p *Pipeline) validateOutput() error {
	if len(p.Output.Columns) == 0 {
		return configErr("output.columns", "at least one column mapping is required")
	}
	labels := make(map[string]int, len(p.Output.Columns))
	for i, m := range p.Output.Columns {
		field := fmt.Sprintf("output.columns[%d]", i)
		if m.Source == "" || m.Label == "" {
			return configErr(field, "source and label are required")
		}
		if first, dup := labels[m.Label]; dup {
			return configErr(field, "label %q already used by output.columns[%d]", m.Label, first)
		}
		labels[m.Label] = i
	}
	if dt := p.Output.DateTime; dt != nil {
		for _, tz := range []string{dt.SourceTimezone, dt.TargetTimezone} {
			if _, err := time.LoadLocation(tz); err != nil {
				return &ConfigError{Field: "output.datetime", Reason: "bad timezone", Err: err}
			}
		}
	}
	switch p.Export.Format {
	case FormatCSV, FormatSQLite:
	default:
		return configErr("export.format", "unsupported format %q", p.Export.Format)
	}
	return nil
}
