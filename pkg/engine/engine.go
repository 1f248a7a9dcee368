// SPDX-License-Identifier: MPL-2.0

// Package engine wires configuration, a service catalog, a matching strategy
// and the forward discoverer into one ready-to-search value.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/composit/composit/internal/config"
	"github.com/composit/composit/internal/logging"
	"github.com/composit/composit/pkg/catalog"
	"github.com/composit/composit/pkg/discovery"
	"github.com/composit/composit/pkg/index"
	"github.com/composit/composit/pkg/matcher"
	"github.com/composit/composit/pkg/model"
)

// ErrNoCatalog is returned by New when Options.CatalogFile is empty.
var ErrNoCatalog = errors.New("no catalog file given")

type (
	// Options configures New.
	Options struct {
		// CatalogFile is the catalog to search (required).
		CatalogFile string
		// ConfigFile forces a configuration file; a missing file is an error.
		ConfigFile string
		// ConfigDir overrides the directory searched for config.cue.
		ConfigDir string
		// Provider loads the configuration. Defaults to config.NewProvider().
		Provider config.Provider
		// Logger overrides the logger built from the configuration.
		Logger *slog.Logger
	}

	// Engine searches one catalog with one configuration. It is safe for
	// concurrent use.
	Engine struct {
		cfg        config.Config
		catalog    *catalog.Catalog
		operations []*model.Operation[string]
		discoverer *discovery.ForwardDiscoverer[string, float64]
		logger     *slog.Logger
	}

	// Result is the discovery result with scores normalised to float64.
	Result = discovery.Result[string, float64]
)

// New loads the configuration and the catalog and builds an Engine.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.CatalogFile == "" {
		return nil, ErrNoCatalog
	}
	provider := opts.Provider
	if provider == nil {
		provider = config.NewProvider()
	}
	cfg, err := provider.Load(ctx, config.LoadOptions{
		ConfigFilePath: opts.ConfigFile,
		ConfigDirPath:  opts.ConfigDir,
	})
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(opts.CatalogFile)
	if err != nil {
		return nil, err
	}
	return NewFromCatalog(cfg, cat, opts.Logger)
}

// NewFromCatalog builds an Engine from values already in memory. A nil
// logger is built from cfg.Log.
func NewFromCatalog(cfg *config.Config, cat *catalog.Catalog, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Options{Level: cfg.Log.Level.String(), Prefix: cfg.Log.Prefix})
		if err != nil {
			return nil, err
		}
	}

	tax, err := cat.Taxonomy()
	if err != nil {
		return nil, err
	}
	fn, err := NewMatcher(cfg.Matching, tax)
	if err != nil {
		return nil, err
	}

	ops := cat.ModelOperations()
	mem, err := index.NewMemory(ops...)
	if err != nil {
		return nil, err
	}
	var idx index.OperationIndex[string] = mem
	if cfg.Matching.Strategy != config.StrategyExact {
		idx = index.NewMatchBased(mem, fn)
	}

	d := discovery.New(idx, fn,
		discovery.WithRelaxedMatch(cfg.Discovery.RelaxedMatch),
		discovery.WithParallelism(cfg.Discovery.Parallelism),
		discovery.WithLogger(logger),
	)
	logger.Debug("engine ready",
		"strategy", cfg.Matching.Strategy,
		"operations", len(ops),
		"concepts", len(cat.ConceptNames()),
		"relaxed", cfg.Discovery.RelaxedMatch,
	)
	return &Engine{cfg: *cfg, catalog: cat, operations: ops, discoverer: d, logger: logger}, nil
}

// NewMatcher builds the set match function named by cfg.Strategy, scoring
// matches in [0, 1]. Degree-based strategies use matcher.Degree.Weight.
func NewMatcher(cfg config.MatchingConfig, tax *matcher.Taxonomy[string]) (matcher.SetMatchFunction[string, float64], error) {
	switch cfg.Strategy {
	case config.StrategyExact:
		return matcher.Rescore(matcher.Exact[string](), matcher.Degree.Weight), nil
	case config.StrategyTaxonomic:
		var opts []matcher.TaxonomicOption
		if cfg.AllowSubsumes {
			opts = append(opts, matcher.WithSubsumes())
		}
		return matcher.Rescore(matcher.Taxonomic(tax, opts...), matcher.Degree.Weight), nil
	case config.StrategySimilarity:
		if cfg.Threshold <= 0 || cfg.Threshold > 1 {
			return nil, &config.InvalidThresholdError{Value: cfg.Threshold}
		}
		return matcher.Threshold(matcher.TokenJaccard, cfg.Threshold), nil
	default:
		return nil, &config.InvalidStrategyError{Value: cfg.Strategy}
	}
}

// Search runs the catalog's request.
func (e *Engine) Search(ctx context.Context) (*Result, error) {
	return e.SearchRequest(ctx, e.catalog.ModelRequest())
}

// SearchRequest runs req against the catalog's operations.
func (e *Engine) SearchRequest(ctx context.Context, req model.Request[string]) (*Result, error) {
	res, err := e.discoverer.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	for _, d := range res.Diagnostics {
		if d.Severity == discovery.SeverityWarning {
			e.logger.Warn(d.Message, "code", d.Code, "operation", d.Operation)
		}
	}
	return res, nil
}

// Config returns the configuration in use.
func (e *Engine) Config() config.Config { return e.cfg }

// Catalog returns the loaded catalog. Callers must not modify it.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Operations returns the operations searched, in catalog order.
func (e *Engine) Operations() []*model.Operation[string] {
	return append([]*model.Operation[string](nil), e.operations...)
}
