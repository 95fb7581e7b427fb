package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Sternrassler/odata-export/pkg/format"
	"github.com/Sternrassler/odata-export/pkg/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
api:
  base_url: https://api.example.com/odata/
  token_url: https://login.example.com/token
  client_id: exporter
  client_secret: ${ODATA_CONFIG_TEST_SECRET}
endpoints:
  - name: Lines
    select: [OrderID, Sku]
    key_filter: OrderID
    driving_source: Orders.OrderID
  - name: Orders
    select: [No, CustomerID]
    key_filter: CustomerID
    driving_source: {endpoint: Customers, column: CustomerID}
    rename:
      - {from: No, to: OrderID}
  - name: Customers
    select: [CustomerID, Name]
    filter: Country eq 'DE'
transform:
  base: Lines
  steps:
    - join: {dataset: Orders, left_key: OrderID, right_key: OrderID}
    - cast: {column: CustomerID, type: int}
    - rename: {from: Sku, to: Item}
output:
  columns:
    - {source: OrderID, label: Order}
    - {source: Item, label: Item}
  datetime:
    columns: [Created]
  booleans: [Paid]
  value_maps:
    Status: {"0": Open, "1": Closed}
`

func parseValid(t *testing.T) *Pipeline {
	t.Helper()
	t.Setenv("ODATA_CONFIG_TEST_SECRET", "s3cret")
	p, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	return p
}

func TestParse(t *testing.T) {
	p := parseValid(t)

	assert.Equal(t, "s3cret", p.API.ClientSecret)
	require.Len(t, p.Endpoints, 3)
	assert.Equal(t, &DrivingSource{Endpoint: "Orders", Column: "OrderID"}, p.Endpoints[0].DrivingSource)
	assert.Equal(t, &DrivingSource{Endpoint: "Customers", Column: "CustomerID"}, p.Endpoints[1].DrivingSource)
	assert.Equal(t, []string{"OrderID", "CustomerID"}, p.Endpoints[1].Columns())
	assert.Equal(t, "Country eq 'DE'", p.Endpoints[2].Filter)

	assert.Equal(t, []transform.Op{
		transform.Join{Dataset: "Orders", LeftKey: "OrderID", RightKey: "OrderID"},
		transform.Cast{Column: "CustomerID", Kind: transform.KindInt64},
		transform.Rename{From: "Sku", To: "Item"},
	}, p.Ops())

	assert.Equal(t, []format.Mapping{{Source: "OrderID", Label: "Order"}, {Source: "Item", Label: "Item"}}, p.Output.Columns)
	assert.Equal(t, map[string]string{"0": "Open", "1": "Closed"}, p.Output.ValueMaps["Status"])
}

func TestParse_Defaults(t *testing.T) {
	p := parseValid(t)

	assert.Equal(t, 10, p.API.ChunkSize)
	assert.Equal(t, 120*time.Second, p.API.Timeout)
	assert.Equal(t, "odata.maxpagesize=100000", p.API.PageSizeHint)
	assert.Equal(t, "close", p.API.Connection)
	assert.Equal(t, "client_credentials", p.API.GrantType)
	assert.Equal(t, "./output", p.Export.Dir)
	assert.Equal(t, FormatCSV, p.Export.Format)
	assert.Equal(t, "api_export", p.Export.Prefix)
	assert.Equal(t, "export", p.Export.Table)
	assert.Equal(t, 5*time.Minute, p.Cache.TTL)
	assert.Empty(t, p.Cache.RedisAddr)
	assert.Equal(t, "%Y-%m-%d %H:%M", p.Output.DateTime.Layout)
	assert.Equal(t, "UTC", p.Output.DateTime.TargetTimezone)
}

func TestExecutionOrder(t *testing.T) {
	p := parseValid(t)
	order, err := p.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"Customers", "Orders", "Lines"}, order)
}

func TestExecutionOrder_IndependentKeepDeclarationOrder(t *testing.T) {
	p := &Pipeline{Endpoints: []Endpoint{
		{Name: "C", DrivingSource: &DrivingSource{Endpoint: "A", Column: "x"}},
		{Name: "B"},
		{Name: "A"},
		{Name: "D"},
	}}
	order, err := p.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C", "D"}, order)
}

func TestExecutionOrder_Cycle(t *testing.T) {
	p := &Pipeline{Endpoints: []Endpoint{
		{Name: "Free"},
		{Name: "A", DrivingSource: &DrivingSource{Endpoint: "B", Column: "x"}},
		{Name: "B", DrivingSource: &DrivingSource{Endpoint: "A", Column: "y"}},
	}}
	_, err := p.ExecutionOrder()
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "cycle among A, B")
}

func TestParse_UnknownOp(t *testing.T) {
	data := strings.Replace(validYAML, "- rename: {from: Sku, to: Item}", "- pivot: {column: Sku}", 1)
	_, err := Parse([]byte(data))

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, transform.ErrUnknownOp)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		old     string
		new     string
		field   string
		errPart string
	}{
		{"missing base url", "base_url: https://api.example.com/odata/", "base_url: ''", "api.base_url", "required"},
		{"bad grant type", "client_id: exporter", "client_id: exporter\n  grant_type: password", "api.grant_type", "unsupported"},
		{"bad chunk size", "client_id: exporter", "client_id: exporter\n  chunk_size: -1", "api.chunk_size", ">= 1"},
		{"duplicate endpoint", "- name: Customers", "- name: Orders", "endpoints[2].name", "duplicate"},
		{"key filter without driver", "    key_filter: OrderID\n    driving_source: Orders.OrderID\n", "    key_filter: OrderID\n", "endpoints[0]", "together"},
		{"unknown driver", "driving_source: Orders.OrderID", "driving_source: Invoices.OrderID", "endpoints[0].driving_source", "unknown endpoint"},
		{"driver column not selected", "driving_source: Orders.OrderID", "driving_source: Orders.No", "endpoints[0].driving_source", "no column"},
		{"self reference", "driving_source: Orders.OrderID", "driving_source: Lines.OrderID", "endpoints[0].driving_source", "itself"},
		{"unknown base", "base: Lines", "base: Nope", "transform.base", "unknown endpoint"},
		{"unknown join dataset", "dataset: Orders,", "dataset: Nope,", "transform.steps[0]", "unknown dataset"},
		{"no output columns", "  columns:\n    - {source: OrderID, label: Order}\n    - {source: Item, label: Item}\n", "  columns: []\n", "output.columns", "at least one"},
		{"duplicate output label", "{source: Item, label: Item}", "{source: Item, label: Order}", "output.columns[1]", `label "Order" already used by output.columns[0]`},
		{"bad export format", "output:", "export:\n  format: xlsx\noutput:", "export.format", "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(validYAML, tt.old, tt.new, 1)
			require.NotEqual(t, validYAML, data, "fixture replacement did not apply")

			_, err := Parse([]byte(data))
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Error(), tt.errPart)
		})
	}
}

func TestParse_BadTimezone(t *testing.T) {
	data := strings.Replace(validYAML, "columns: [Created]", "columns: [Created]\n    target_timezone: Mars/Olympus", 1)
	_, err := Parse([]byte(data))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "output.datetime", ce.Field)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("api: [unclosed"))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "yaml", ce.Field)
}

func TestStep_Decode(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		errPart string
	}{
		{"two ops in one step", "- {rename: {from: a, to: b}, cast: {column: a, type: int}}", "exactly one"},
		{"unknown cast type", "- cast: {column: a, type: decimal}", "unknown cast type"},
		{"scalar step", "- rename", "must be a mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(validYAML, "- rename: {from: Sku, to: Item}", tt.yaml, 1)
			_, err := Parse([]byte(data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestDrivingSource_ShortFormInvalid(t *testing.T) {
	data := strings.Replace(validYAML, "driving_source: Orders.OrderID", "driving_source: OrdersOrderID", 1)
	_, err := Parse([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint.column")
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ODATA_X", "value")
	got := string(expandEnv([]byte("a: ${ODATA_X}\nfilter: $top eq 1\nb: ${ODATA_UNSET_VAR}")))
	assert.Equal(t, "a: value\nfilter: $top eq 1\nb: ", got)
}

func TestLoad(t *testing.T) {
	t.Setenv("ODATA_CONFIG_TEST_SECRET", "from-env")
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.API.ClientSecret)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExamplePipeline(t *testing.T) {
	t.Setenv("ODATA_CLIENT_ID", "example")
	p, err := Load(filepath.Join("..", "..", "examples", "pipeline.yaml"))
	require.NoError(t, err)

	order, err := p.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"Customers", "Orders", "OrderLines"}, order)
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "api.base_url", Reason: "is required"}
	assert.Equal(t, "config error at api.base_url: is required", err.Error())
	assert.Nil(t, err.Unwrap())
}
