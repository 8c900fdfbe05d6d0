package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code string) error { return &pgconn.PgError{Code: code, Message: "ledger"} }

func TestDBErrorCode(t *testing.T) {
	cases := []struct {
		state string
		want  ErrorCode
	}{
		{"23505", ErrorCodeDuplicateKey},
		{"23502", ErrorCodeValidation},
		{"23514", ErrorCodeValidation},
		{"22P02", ErrorCodeInvalidArgument},
		{"57014", ErrorCodeTimeout},
		{"57P03", ErrorCodeUnavailable},
		{"25006", ErrorCodeUnavailable},
		{"42P01", ErrorCodeFatal},
		{"40001", ErrorCodeDB},
		{"XX000", ErrorCodeDB},
	}
	for _, c := range cases {
		wrapped := fmt.Errorf("finish file: %w", pgErr(c.state))
		got, ok := DBErrorCode(wrapped)
		if !ok || got != c.want {
			t.Fatalf("%s: got %v/%v want %v", c.state, got, ok, c.want)
		}
	}
	if _, ok := DBErrorCode(stderrs.New("plain")); ok {
		t.Fatalf("plain error must not map")
	}
}

func TestFromPostgres(t *testing.T) {
	if FromPostgres(nil, "x") != nil {
		t.Fatalf("nil must stay nil")
	}
	err := FromPostgres(pgErr("57014"), "start file")
	if !IsCode(err, ErrorCodeTimeout) {
		t.Fatalf("want timeout, got %v", CodeOf(err))
	}
	if state, ok := SQLState(err); !ok || state != "57014" {
		t.Fatalf("SQLState lost through wrap: %q %v", state, ok)
	}
	if !IsCode(FromPostgres(stderrs.New("conn reset"), "x"), ErrorCodeDB) {
		t.Fatalf("non pg errors map to db")
	}
}

func TestIsRetryable(t *testing.T) {
	yes := []error{
		pgErr("40001"),
		pgErr("40P01"),
		pgErr("55P03"),
		pgErr("57P03"),
		stderrs.New("commit unexpectedly resulted in rollback"),
		stderrs.New("ERROR: deadlock detected"),
	}
	for _, e := range yes {
		if !IsRetryable(e) {
			t.Fatalf("want retryable: %v", e)
		}
	}
	no := []error{
		nil,
		pgErr("23505"),
		context.Canceled,
		fmt.Errorf("ledger: %w", context.DeadlineExceeded),
		stderrs.New("syntax error"),
	}
	for _, e := range no {
		if IsRetryable(e) {
			t.Fatalf("want not retryable: %v", e)
		}
	}
	if !Retryable(Unavailablef("relay down")) {
		t.Fatalf("unavailable code must be retryable")
	}
}
