// Package repository holds the MySQL-backed stores. Callers never see
// driver errors for expected outcomes: lookups that find nothing, uniqueness
// violations and malformed identifiers come back as the sentinels below.
// Anything else is a store fault, wrapped with context.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrInvalidID is returned when an identifier is not well formed. It is
// raised before any query runs.
var ErrInvalidID = errors.New("invalid identifier")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
