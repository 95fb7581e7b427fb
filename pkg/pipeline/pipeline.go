// Package pipeline runs a configured export end to end: acquire a
// credential, fetch every endpoint in dependency order, assemble the joined
// table, format it and write the export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Sternrassler/odata-export/pkg/auth"
	"github.com/Sternrassler/odata-export/pkg/cache"
	"github.com/Sternrassler/odata-export/pkg/client"
	"github.com/Sternrassler/odata-export/pkg/config"
	"github.com/Sternrassler/odata-export/pkg/dataset"
	"github.com/Sternrassler/odata-export/pkg/export"
	"github.com/Sternrassler/odata-export/pkg/format"
	"github.com/Sternrassler/odata-export/pkg/logging"
	"github.com/Sternrassler/odata-export/pkg/planner"
	"github.com/Sternrassler/odata-export/pkg/transform"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odata_pipeline_runs_total",
		Help: "Total pipeline runs by result",
	}, []string{"result"})

	rowsFetched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odata_rows_fetched",
		Help: "Rows fetched per endpoint in the last run",
	}, []string{"endpoint"})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "odata_pipeline_duration_seconds",
		Help:    "Pipeline run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
)

// Options overrides collaborators built from the configuration.
type Options struct {
	// Tokens replaces the client-credentials provider.
	Tokens auth.TokenProvider

	// Cache replaces the Redis page cache built from cache.redis_addr.
	Cache *cache.Manager

	// Sink replaces the export sink built from the export section.
	Sink export.Sink

	// HTTPClient is used for resource requests (for testing).
	HTTPClient *http.Client
}

// Pipeline holds the collaborators of one configured export.
type Pipeline struct {
	config  *config.Pipeline
	order   []string
	client  *client.Client
	planner *planner.Planner
	sink    export.Sink
	logger  zerolog.Logger
}

// Result summarizes a successful run.
type Result struct {
	RunID    string
	Path     string
	Rows     int
	Columns  []string
	Fetched  map[string]int
	Duration time.Duration
}

// New wires a pipeline for a validated configuration.
func New(cfg *config.Pipeline, opts Options) (*Pipeline, error) {
	order, err := cfg.ExecutionOrder()
	if err != nil {
		return nil, err
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens, err = auth.NewClientCredentials(auth.Config{
			TokenURL:     cfg.API.TokenURL,
			ClientID:     cfg.API.ClientID,
			ClientSecret: cfg.API.ClientSecret,
			Scope:        cfg.API.Scope,
			Timeout:      cfg.API.Timeout,
		})
		if err != nil {
			return nil, &config.ConfigError{Field: "api", Reason: "token provider", Err: err}
		}
	}

	pageCache := opts.Cache
	if pageCache == nil && cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		pageCache = cache.NewManager(rdb, cfg.Cache.TTL)
	}

	ccfg := client.DefaultConfig(tokens)
	ccfg.Timeout = cfg.API.Timeout
	ccfg.PageSizeHint = cfg.API.PageSizeHint
	ccfg.Connection = cfg.API.Connection
	ccfg.Cache = pageCache
	c, err := client.New(ccfg)
	if err != nil {
		return nil, err
	}
	if opts.HTTPClient != nil {
		c.SetHTTPClient(opts.HTTPClient)
	}

	sink := opts.Sink
	if sink == nil {
		sink, err = export.New(cfg.Export)
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{
		config:  cfg,
		order:   order,
		client:  c,
		planner: planner.New(cfg.API.BaseURL, cfg.API.ChunkSize),
		sink:    sink,
		logger:  logging.NewLogger("pipeline"),
	}, nil
}

// Order returns the endpoint execution order.
func (p *Pipeline) Order() []string {
	return append([]string(nil), p.order...)
}

// Run executes one export. The first fatal error aborts the run and
// nothing is written.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With().Str("run_id", runID).Logger()
	logger.Info().Strs("order", p.order).Msg("Pipeline run started")

	res, err := p.run(ctx, logger)
	pipelineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		pipelineRunsTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Pipeline run failed")
		return nil, err
	}

	res.RunID = runID
	res.Duration = time.Since(start)
	pipelineRunsTotal.WithLabelValues("ok").Inc()
	logger.Info().
		Str("path", res.Path).
		Int("rows", res.Rows).
		Int("columns", len(res.Columns)).
		Dur("duration", res.Duration).
		Msg("Pipeline run complete")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger zerolog.Logger) (*Result, error) {
	table, fetched, err := p.assemble(ctx, logger)
	if err != nil {
		return nil, err
	}

	out := format.Format(table, p.config.Output.Columns, Processors(p.config.Output)...)

	path, err := p.sink.Write(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	return &Result{
		Path:    path,
		Rows:    out.Len(),
		Columns: out.Columns,
		Fetched: fetched,
	}, nil
}

// Assemble fetches every endpoint and applies the transform steps to the
// base dataset. It returns the joined table and the row count per endpoint.
func (p *Pipeline) Assemble(ctx context.Context) (*dataset.Dataset, map[string]int, error) {
	return p.assemble(ctx, p.logger)
}

func (p *Pipeline) assemble(ctx context.Context, logger zerolog.Logger) (*dataset.Dataset, map[string]int, error) {
	if err := p.client.Authenticate(ctx); err != nil {
		return nil, nil, err
	}

	store := dataset.NewStore()
	fetched := make(map[string]int, len(p.order))
	for _, name := range p.order {
		ep, _ := p.config.Endpoint(name)
		ds, err := p.fetchEndpoint(ctx, ep, store)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Put(name, ds); err != nil {
			return nil, nil, err
		}
		fetched[name] = ds.Len()
		rowsFetched.WithLabelValues(name).Set(float64(ds.Len()))
		logger.Info().Str("endpoint", name).Int("rows", ds.Len()).Msg("Endpoint fetched")
	}

	base, err := store.Get(p.config.Transform.Base)
	if err != nil {
		return nil, nil, &config.ConfigError{Field: "transform.base", Reason: "base dataset not fetched", Err: err}
	}
	logger.Debug().
		Str("base", p.config.Transform.Base).
		Strs("datasets", store.Names()).
		Int("steps", len(p.config.Ops())).
		Msg("Applying transform")
	table, err := transform.Apply(base, p.config.Ops(), store)
	if err != nil {
		if errors.Is(err, transform.ErrUnknownOp) {
			return nil, nil, &config.ConfigError{Field: "transform.steps", Reason: "unknown operation", Err: err}
		}
		return nil, nil, err
	}
	logger.Debug().
		Str("dataset", p.config.Transform.Base).
		Int("rows", table.Len()).
		Int("columns", len(table.Columns)).
		Msg("Transform complete")
	return table, fetched, nil
}

func (p *Pipeline) fetchEndpoint(ctx context.Context, ep config.Endpoint, store *dataset.Store) (*dataset.Dataset, error) {
	reqs, err := p.planner.Plan(ep, store)
	if err != nil {
		return nil, err
	}
	records, err := p.client.FetchAll(ctx, reqs)
	if err != nil {
		return nil, err
	}

	ds := dataset.Materialize(ep.Name, ep.Select, records)
	for _, r := range ep.Rename {
		ds.RenameColumn(r.From, r.To)
	}
	return ds, nil
}

// Processors builds the output post-processing steps: datetime first, then
// booleans, then value maps sorted by column.
func Processors(out config.Output) []format.Processor {
	var procs []format.Processor
	if out.DateTime != nil && len(out.DateTime.Columns) > 0 {
		procs = append(procs, *out.DateTime)
	}
	if len(out.Booleans) > 0 {
		procs = append(procs, format.Boolean{Columns: out.Booleans})
	}

	cols := make([]string, 0, len(out.ValueMaps))
	for col := range out.ValueMaps {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		procs = append(procs, format.ValueMap{Column: col, Values: out.ValueMaps[col]})
	}
	return procs
}
