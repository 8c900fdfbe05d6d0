package errors

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the ingest ledger can run into
const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
	pgSerialization       = "40001"
	pgDeadlock            = "40P01"
	pgLockNotAvailable    = "55P03"
	pgQueryCanceled       = "57014" // statement_timeout
	pgCannotConnectNow    = "57P03"
	pgReadOnlyTransaction = "25006"
	pgUndefinedTable      = "42P01"
)

// SQLState returns the SQLSTATE of the PgError under err, if any
func SQLState(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr.Code, true
	}
	return "", false
}

// DBErrorCode maps a Postgres error to an ErrorCode
// ok is false when err carries no PgError.
func DBErrorCode(err error) (code ErrorCode, ok bool) {
	state, ok := SQLState(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch state {
	case pgUniqueViolation:
		return ErrorCodeDuplicateKey, true
	case pgNotNullViolation, pgCheckViolation:
		return ErrorCodeValidation, true
	case pgInvalidText:
		return ErrorCodeInvalidArgument, true
	case pgQueryCanceled:
		return ErrorCodeTimeout, true
	case pgCannotConnectNow, pgReadOnlyTransaction:
		return ErrorCodeUnavailable, true
	case pgUndefinedTable:
		return ErrorCodeFatal, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps a ledger error with its mapped code, nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// IsRetryable reports whether a database error is transient contention
// Local cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if state, ok := SQLState(err); ok {
		switch state {
		case pgSerialization, pgDeadlock, pgLockNotAvailable, pgCannotConnectNow:
			return true
		}
		return false
	}
	s := strings.ToLower(err.Error())
	for _, frag := range []string{
		"commit unexpectedly resulted in rollback",
		"deadlock detected",
		"could not serialize access",
		"terminating connection due to administrator command",
	} {
		if strings.Contains(s, frag) {
			return true
		}
	}
	return false
}
