package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// unique_violation per PostgreSQL error code table.
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL uniqueness violation.
// Used to detect duplicate document numbers under concurrent allocation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsSerializationFailure reports whether err is a transaction serialization
// conflict, which RepeatableRead surfaces when two writers race.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
