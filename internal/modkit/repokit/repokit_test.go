package repokit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recQ records the statements it is given
type recQ struct {
	sqls []string
	err  error
}

func (r *recQ) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	r.sqls = append(r.sqls, sql)
	return nil, r.err
}
func (r *recQ) Query(_ context.Context, sql string, _ ...any) (Rows, error) {
	r.sqls = append(r.sqls, sql)
	return nil, r.err
}
func (r *recQ) QueryRow(_ context.Context, sql string, _ ...any) Row {
	r.sqls = append(r.sqls, sql)
	return nil
}

// recTx runs fn against its recQ and counts transactions
type recTx struct {
	recQ
	txs int
}

func (r *recTx) Tx(_ context.Context, fn func(q Queryer) error) error {
	r.txs++
	return fn(&r.recQ)
}

func TestBindFunc(t *testing.T) {
	t.Parallel()

	q := &recQ{}
	b := BindFunc[*recQ](func(got Queryer) *recQ { return got.(*recQ) })
	if b.Bind(q) != q {
		t.Fatalf("Bind did not pass the queryer through")
	}
}

func TestWithBeginHooks_RunBeforeFnInsideTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	inner := &recTx{}
	var order []string
	hook := func(name string) BeginHook {
		return func(ctx context.Context, q Queryer) error {
			order = append(order, name)
			_, err := q.Exec(ctx, "hook "+name)
			return err
		}
	}
	tx := WithBeginHooks(inner, hook("a"), hook("b"))

	err := tx.Tx(ctx, func(q Queryer) error {
		order = append(order, "fn")
		_, err := q.Exec(ctx, "insert into ingest_files")
		return err
	})
	if err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if inner.txs != 1 || len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "fn" {
		t.Fatalf("txs=%d order=%v", inner.txs, order)
	}

	if _, err := tx.Exec(ctx, "select 1"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if inner.txs != 1 || inner.sqls[len(inner.sqls)-1] != "select 1" {
		t.Fatalf("plain Exec should bypass hooks: txs=%d sqls=%v", inner.txs, inner.sqls)
	}
}

func TestWithBeginHooks_HookErrorStopsFn(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tx := WithBeginHooks(&recTx{}, func(context.Context, Queryer) error { return boom })
	ran := false
	err := tx.Tx(context.Background(), func(Queryer) error { ran = true; return nil })
	if !errors.Is(err, boom) || ran {
		t.Fatalf("err=%v ran=%v", err, ran)
	}
}

func TestWithBeginHooks_NoHooksReturnsInner(t *testing.T) {
	t.Parallel()

	inner := &recTx{}
	if got := WithBeginHooks(inner); got != TxRunner(inner) {
		t.Fatalf("want inner back, got %T", got)
	}
}

func TestStatementTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	q := &recQ{}
	if err := StatementTimeout(1500*time.Millisecond)(ctx, q); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(q.sqls) != 1 || q.sqls[0] != "SET LOCAL statement_timeout = 1500" {
		t.Fatalf("sqls = %v", q.sqls)
	}

	q = &recQ{}
	if err := StatementTimeout(0)(ctx, q); err != nil || len(q.sqls) != 0 {
		t.Fatalf("zero timeout should be a no-op: %v %v", err, q.sqls)
	}
}
