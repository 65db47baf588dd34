// Package module provides the ingest module implementation
package module

import (
	"time"

	"marquee/internal/modkit"

	"marquee/internal/adapters/catalog/tmdb"
	"marquee/internal/core/normalize"
	perr "marquee/internal/platform/errors"
	"marquee/internal/platform/retry"
	"marquee/internal/services/ingest/domain"
	"marquee/internal/services/ingest/feed"
	"marquee/internal/services/ingest/repo"
	"marquee/internal/services/ingest/service"
)

// Ports defines the ingest module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the ingest module
type Module struct {
	deps  modkit.Deps
	ports Ports
	spec  domain.DateSpec
}

// New constructs the ingest module.
// It wires the catalog client, normalizer, sink, and ledger using config from
// deps.Cfg; invalid configuration fails here, before any network call
func New(deps modkit.Deps) (*Module, error) {
	opts, err := FromConfig(deps.Cfg)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, perr.Configf("unknown timezone %q", opts.Timezone)
	}

	policy := retry.Policy{
		Attempts:  uint(opts.Retries),
		BaseDelay: opts.RetryBase,
	}

	client := tmdb.NewClient(tmdb.Options{
		APIKey:   opts.APIKey,
		BaseURL:  opts.BaseURL,
		Language: opts.Language,
		Timeout:  opts.FetchTimeout,
		Retry:    policy,
	})

	svc := service.New(
		deps.PG, repo.NewPG(),
		feed.NewCatalog(client),
		feed.NewNormalizer(normalize.New()),
		repo.NewCHSink(deps.CH),
		service.Config{
			Threshold:  opts.Threshold,
			BatchSize:  opts.BatchSize,
			Retry:      policy,
			FetchDelay: opts.FetchDelay,
			Location:   loc,
		},
	)

	m := &Module{
		deps: deps,
		spec: domain.DateSpec{Date: opts.TargetDate, BackfillDays: opts.BackfillDays},
	}
	m.ports = Ports{Runner: svc}
	return m, nil
}

// Name returns the module name
func (m *Module) Name() string { return "ingest" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Spec returns the DateSpec assembled from configuration
func (m *Module) Spec() domain.DateSpec { return m.spec }
