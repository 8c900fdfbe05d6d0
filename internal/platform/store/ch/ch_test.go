package ch

import (
	"context"
	"testing"

	perr "warcdex/internal/platform/errors"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestOpen_BadDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{URL: "clickhouse://host:notaport/db?dial_timeout=bogus"})
	if err == nil {
		t.Fatalf("Open expected error for bad dsn")
	}
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("Open error code = %v, want invalid_argument", perr.CodeOf(err))
	}
}

func TestOpen_SetsClientInfo(t *testing.T) {
	var got *clickhouse.Options
	old := openConn
	openConn = func(o *clickhouse.Options) (clickhouse.Conn, error) {
		got = o
		return nil, nil
	}
	t.Cleanup(func() { openConn = old })

	c, err := Open(context.Background(), Config{URL: "clickhouse://u:p@localhost:9000/warcdex", Role: "index", Tag: "warcdex-index"})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if c == nil || got == nil {
		t.Fatalf("Open did not reach the driver")
	}
	if got.Auth.Database != "warcdex" || got.Auth.Username != "u" {
		t.Fatalf("dsn not parsed: %+v", got.Auth)
	}
	if len(got.ClientInfo.Products) == 0 || got.ClientInfo.Products[0].Name != "warcdex-index" {
		t.Fatalf("client info not set: %+v", got.ClientInfo)
	}
}

func TestInsert_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	c := &CH{}
	if err := c.Insert(context.Background(), "t", nil); err != nil {
		t.Fatalf("Insert with no rows returned error: %v", err)
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"records", "`records`"},
		{"db.records", "`db`.`records`"},
		{"`db`.`records`", "`db`.`records`"},
		{"we`ird", "`we``ird`"},
	}
	for _, c := range cases {
		if got := quoteIdent(c.in); got != c.want {
			t.Fatalf("quoteIdent(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBuildClientInfo(t *testing.T) {
	t.Parallel()

	ci := BuildClientInfo(" index ", "")
	if len(ci.Products) != 5 {
		t.Fatalf("products = %+v", ci.Products)
	}
	if ci.Products[0].Name != "warcdex" || ci.Products[0].Version != "dev" {
		t.Fatalf("first product = %+v", ci.Products[0])
	}
	if ci.Products[1].Version != "index" {
		t.Fatalf("role = %q", ci.Products[1].Version)
	}
	if ci.Products[3].Version == "" {
		t.Fatalf("commit empty")
	}
}
