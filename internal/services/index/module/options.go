package module

import (
	"time"

	"warcdex/internal/adapters/ingest/warc"
	"warcdex/internal/platform/config"
	"warcdex/internal/platform/validate"
	"warcdex/internal/services/index/sink"
)

// Options holds configuration for the index pipeline
type Options struct {
	InMemoryThreshold int64 `env:"CORE_INDEX_IN_MEMORY_THRESHOLD" validate:"gt=0"`
	OnDiskThreshold   int64 `env:"CORE_INDEX_ON_DISK_THRESHOLD" validate:"gtefield=InMemoryThreshold"`
	SpoolDir          string

	Workers     int `env:"CORE_INDEX_WORKERS" validate:"gt=0"`
	NumReducers int `env:"CORE_INDEX_NUM_REDUCERS" validate:"gte=0"`
	StatusEvery int `env:"CORE_INDEX_STATUS_EVERY" validate:"gt=0"`

	Analysers  []string `env:"CORE_INDEX_ANALYSERS" validate:"dive,oneof=html text image"`
	Types      []string `env:"CORE_INDEX_TYPES" validate:"dive,oneof=response resource revisit request metadata conversion"`
	MaxAnalyse int64    `env:"CORE_INDEX_MAX_ANALYSE" validate:"gt=0"`

	OutDir  string   `env:"CORE_INDEX_OUT_DIR" validate:"required"`
	Sinks   []string `env:"CORE_INDEX_SINKS" validate:"min=1,dive,oneof=ndjson cdx clickhouse relay"`
	Gzip    bool
	CHTable string `env:"CORE_INDEX_CH_TABLE" validate:"required"`
	CHBatch int    `env:"CORE_INDEX_CH_BATCH" validate:"gt=0"`

	CacheDir      string
	CacheMaxAge   time.Duration `env:"CORE_INDEX_CACHE_MAX_AGE" validate:"gte=0"`
	CacheMaxBytes int64         `env:"CORE_INDEX_CACHE_MAX_BYTES" validate:"gte=0"`
	FetchRetries  int           `env:"CORE_INDEX_FETCH_RETRIES" validate:"gte=0"`
	FetchTimeout  time.Duration `env:"CORE_INDEX_FETCH_TIMEOUT" validate:"gte=0"`
	DBTimeout     time.Duration `env:"CORE_INDEX_DB_TIMEOUT" validate:"gte=0"`

	Ledger bool
	Resume bool
	Leases bool
}

// FromConfig reads the index options from config with CORE_INDEX_ prefix
func FromConfig(cfg config.Conf) Options {
	ix := cfg.Prefix("CORE_INDEX_")
	return Options{
		InMemoryThreshold: ix.MayBytes("IN_MEMORY_THRESHOLD", 1<<20),
		OnDiskThreshold:   ix.MayBytes("ON_DISK_THRESHOLD", 100<<20),
		SpoolDir:          ix.MayString("SPOOL_DIR", ""),

		Workers:     ix.MayInt("WORKERS", 1),
		NumReducers: ix.MayInt("NUM_REDUCERS", 10),
		StatusEvery: ix.MayInt("STATUS_EVERY", 1000),

		Analysers:  ix.MayCSV("ANALYSERS", nil),
		Types:      ix.MayCSV("TYPES", nil),
		MaxAnalyse: ix.MayBytes("MAX_ANALYSE", 10<<20),

		OutDir:  ix.MayString("OUT_DIR", "./out"),
		Sinks:   ix.MayCSV("SINKS", []string{sink.NameNDJSON, sink.NameCDX}),
		Gzip:    ix.MayBool("GZIP", false),
		CHTable: ix.MayString("CH_TABLE", sink.DefaultCHTable),
		CHBatch: ix.MayInt("CH_BATCH", 5000),

		CacheDir:      ix.MayString("CACHE_DIR", ""),
		CacheMaxAge:   ix.MayDuration("CACHE_MAX_AGE", 0),
		CacheMaxBytes: ix.MayBytes("CACHE_MAX_BYTES", 0),
		FetchRetries:  ix.MayInt("FETCH_RETRIES", 3),
		FetchTimeout:  ix.MayDuration("FETCH_TIMEOUT", 10*time.Minute),
		DBTimeout:     ix.MayDuration("DB_TIMEOUT", 5*time.Second),

		Ledger: ix.MayBool("LEDGER", false),
		Resume: ix.MayBool("RESUME", false),
		Leases: ix.MayBool("LEASES", false),
	}
}

// Validate checks the options
func (o Options) Validate() error { return validate.Struct(o) }

// RecordTypes converts Types for the extractor; empty means the extractor default
func (o Options) RecordTypes() []warc.Type {
	out := make([]warc.Type, 0, len(o.Types))
	for _, t := range o.Types {
		out = append(out, warc.Type(t))
	}
	return out
}

// WantsSink reports whether name is among the configured sinks
func (o Options) WantsSink(name string) bool {
	for _, s := range o.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
