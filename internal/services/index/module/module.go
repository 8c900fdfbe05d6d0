// Package module wires the index pipeline and its status routes
package module

import (
	"context"
	"errors"
	"time"

	"warcdex/internal/adapters/ingest/fetch"
	"warcdex/internal/core/hashcache"
	"warcdex/internal/modkit"
	kitmod "warcdex/internal/modkit/module"
	"warcdex/internal/modkit/repokit"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"
	"warcdex/internal/services/index/analyse"
	"warcdex/internal/services/index/domain"
	"warcdex/internal/services/index/guardrails"
	"warcdex/internal/services/index/repo"
	"warcdex/internal/services/index/service"
	"warcdex/internal/services/index/sink"
	relaydomain "warcdex/internal/services/relay/domain"
	relaymod "warcdex/internal/services/relay/module"
)

// Ports defines the index module ports
type Ports struct {
	Runner domain.RunnerPort
	Relay  relaydomain.RelayPort // nil unless the relay sink is configured
}

// Module implements the index module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
	cache *hashcache.Cache
	sink  domain.Sink
}

// New constructs the index module from CORE_INDEX_* config
// Sinks are opened here, so output dirs exist and the ClickHouse table is created
// before the first container is read. Call Close once the run is over.
func New(ctx context.Context, deps modkit.Deps) (*Module, error) {
	opts := FromConfig(deps.Cfg)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if (opts.Resume || opts.Leases) && !opts.Ledger {
		return nil, perr.New(perr.ErrorCodeValidation, "CORE_INDEX_RESUME and CORE_INDEX_LEASES need CORE_INDEX_LEDGER")
	}
	if opts.Ledger && deps.PG == nil {
		return nil, perr.New(perr.ErrorCodeValidation, "CORE_INDEX_LEDGER needs a postgres store")
	}
	log := logger.Named("index")
	timeouts := guardrails.Timeouts{Fetch: opts.FetchTimeout, DB: opts.DBTimeout}

	var db repokit.TxRunner
	var binder repokit.Binder[domain.LedgerRepo]
	var lease domain.Lease
	if opts.Ledger {
		db = repokit.WithBeginHooks(deps.PG, repokit.StatementTimeout(opts.DBTimeout))
		binder = repo.NewPG()
		if err := db.Tx(ctx, func(q repokit.Queryer) error { return repo.Migrate(ctx, q) }); err != nil {
			return nil, err
		}
		if opts.Leases {
			lease = guardrails.MakeLease(db, timeouts)
		}
	}

	opener := fetch.Router{}
	if opts.CacheDir != "" {
		cf, err := fetch.NewCachedFetcher(opts.CacheDir,
			fetch.WithRetry(uint64(opts.FetchRetries), time.Second),
			fetch.WithRetention(fetch.Retention{MaxAge: opts.CacheMaxAge, MaxBytes: opts.CacheMaxBytes}))
		if err != nil {
			return nil, err
		}
		opener.Remote = cf
	}

	m := &Module{deps: deps, opts: opts}
	var lines sink.LineRelay
	if opts.WantsSink(sink.NameRelay) {
		// a relay registered by the binary is shared, otherwise one is built from CORE_RELAY_*
		rp, ok := kitmod.PortsAs[relaymod.Ports](relaymod.Name)
		if !ok {
			rm, err := relaymod.New(deps)
			if err != nil {
				return nil, err
			}
			kitmod.Register(rm.Name(), rm.Ports())
			rp = kitmod.MustPortsOf[relaymod.Ports](rm)
		}
		m.ports.Relay = rp.Relay
		lines = m.ports.Relay
	}

	out, err := sink.Open(ctx, sink.Options{
		Names:   opts.Sinks,
		OutDir:  opts.OutDir,
		Gzip:    opts.Gzip,
		CH:      deps.CH,
		CHTable: opts.CHTable,
		CHBatch: opts.CHBatch,
		Relay:   lines,
	})
	if err != nil {
		return nil, err
	}
	m.sink = out

	m.cache = hashcache.New(hashcache.Options{
		InMemoryThreshold: opts.InMemoryThreshold,
		OnDiskThreshold:   opts.OnDiskThreshold,
		SpoolDir:          opts.SpoolDir,
	})
	reg := analyse.Default(opts.Analysers...)
	ex := analyse.NewExtractor(m.cache, reg, analyse.ExtractorOptions{
		Types:      opts.RecordTypes(),
		MaxAnalyse: opts.MaxAnalyse,
	})

	svc := service.New(db, binder, opener, ex, out, service.Config{
		Workers:     opts.Workers,
		Reducers:    opts.NumReducers,
		StatusEvery: opts.StatusEvery,
		Resume:      opts.Resume,
		Leases:      opts.Leases,
		Timeouts:    timeouts,
	}, lease)
	m.ports.Runner = svc

	log.Info().
		Strs("sinks", opts.Sinks).
		Int("workers", opts.Workers).
		Int("reducers", opts.NumReducers).
		Bool("ledger", opts.Ledger).
		Bool("remote", opener.Remote != nil).
		Interface("analysers", reg.Names()).
		Msg("index module ready")
	return m, nil
}

var _ modkit.Module = (*Module)(nil)

// Name returns the module name
func (m *Module) Name() string { return "index" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Runner returns the run port
func (m *Module) Runner() domain.RunnerPort { return m.ports.Runner }

// Options returns the options the module was built with
func (m *Module) Options() Options { return m.opts }

// Close flushes and closes the sinks, then removes any spool files left behind
func (m *Module) Close() error {
	return errors.Join(m.sink.Close(), m.cache.Close())
}
