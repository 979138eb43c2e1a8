package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error is a Postgres unique
// violation. When constraintName is given, the match is narrowed to that
// constraint. Falls back to message sniffing for non-pg drivers (sqlite tests).
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolationCode {
			return false
		}
		if constraintName != "" {
			return pgErr.ConstraintName == constraintName
		}
		return true
	}

	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
