// Package repositories implements the data access layer. Each repository owns the SQL of one
// table (plus the joins it needs) and runs on the pool or on the transaction carried by ctx.
// Queries are written with '?' placeholders and rebound for the driver, so visibility fragments
// from the policy package compose into any of them.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
