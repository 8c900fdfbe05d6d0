package guardrails

import (
	"context"

	"warcdex/internal/modkit/repokit"
	"warcdex/internal/platform/store"
	"warcdex/internal/services/index/domain"
)

// MakeLease returns a domain.Lease backed by the ingest_file_leases table
// The first run to insert a path owns it; later runs skip the file. Leases are
// never released, so a rerun of the same files needs a fresh table or CORE_INDEX_LEASES=false.
func MakeLease(db repokit.TxRunner, t Timeouts) domain.Lease {
	return func(ctx context.Context, path, runID string) (bool, error) {
		ctx, cancel := ForDB(ctx, t)
		defer cancel()

		var claimed bool
		err := db.Tx(ctx, func(q repokit.Queryer) error {
			var err error
			claimed, err = store.Exists(ctx, q, `
				insert into ingest_file_leases (path, run_id)
				values ($1, $2)
				on conflict (path) do update set run_id = excluded.run_id
				where ingest_file_leases.run_id = excluded.run_id
				returning true
			`, path, runID)
			return err
		})
		return claimed, err
	}
}
