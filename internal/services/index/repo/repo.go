// Package repo provides postgres access for the per file ingest ledger
package repo

import (
	"context"
	_ "embed"

	"warcdex/internal/modkit/repokit"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/store"
	"warcdex/internal/services/index/domain"
)

//go:embed schema.sql
var schema string

type (
	// PG is a Postgres binder for domain.LedgerRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.LedgerRepo
func NewPG() repokit.Binder[domain.LedgerRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.LedgerRepo { return &queries{q: q} }

// Migrate creates the ledger tables when missing
func Migrate(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, schema)
	return perr.FromPostgres(err, "migrate ingest ledger")
}

// StartFile marks a container as running for runID (idempotent)
func (r *queries) StartFile(ctx context.Context, path, runID string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO ingest_files (path, run_id, started_at, status)
		VALUES ($1, $2, now(), 'running')
		ON CONFLICT (path) DO UPDATE
		SET run_id = excluded.run_id, started_at = now(), status = 'running',
			finished_at = null, last_error = null
	`, path, runID)
	return perr.FromPostgres(err, "start file")
}

// FinishFile records the outcome of a container (idempotent)
// Files that never started (open failures) get their row created here.
func (r *queries) FinishFile(ctx context.Context, path, runID string, fin domain.FileFinish) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO ingest_files (
			path, run_id, started_at, finished_at, status,
			records, errors, nulls, empty_headers, emitted, bytes, elapsed_ms, last_error
		)
		VALUES ($1, $2, now(), now(), $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
		ON CONFLICT (path) DO UPDATE SET
			run_id = excluded.run_id,
			finished_at = now(),
			status = excluded.status,
			records = excluded.records,
			errors = excluded.errors,
			nulls = excluded.nulls,
			empty_headers = excluded.empty_headers,
			emitted = excluded.emitted,
			bytes = excluded.bytes,
			elapsed_ms = excluded.elapsed_ms,
			last_error = excluded.last_error
	`,
		path, runID, string(fin.Status),
		fin.Counts.Records, fin.Counts.Errors, fin.Counts.Nulls, fin.Counts.EmptyHeaders, fin.Counts.Emitted,
		fin.Bytes, fin.ElapsedMS, fin.ErrText,
	)
	return perr.FromPostgres(err, "finish file")
}

// DonePaths returns which of paths finished with status done
func (r *queries) DonePaths(ctx context.Context, paths []string) (map[string]bool, error) {
	out := make(map[string]bool, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	done, err := store.Many(ctx, r.q, func(row store.Row) (string, error) {
		var p string
		err := row.Scan(&p)
		return p, err
	}, `
		SELECT path FROM ingest_files
		WHERE path = ANY($1::text[]) AND status = 'done'
	`, paths)
	if err != nil {
		return nil, perr.FromPostgres(err, "list done files")
	}
	for _, p := range done {
		out[p] = true
	}
	return out, nil
}
