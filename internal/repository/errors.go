// Package repository defines the data-access contracts of the service and
// their MySQL implementations.  The sentinel values below let higher layers
// distinguish failure scenarios without inspecting driver errors.  For
// example, ErrSeatTaken signals that the (showtime, seat) unique key
// rejected an insert or update, while ErrConflict indicates that an
// operation cannot proceed because of dependent records (e.g. deleting
// a showtime that still has reservations).
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrSeatTaken is returned when the seat is already held for the showtime.
// Services translate it into a seat conflict regardless of whether the
// pre-check or the unique key detected it.
var ErrSeatTaken = errors.New("seat already taken")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a showtime that still
// has reservations.  Handlers should translate this into an HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering an email twice.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicate is returned for unique-key violations not covered above
// (movie slugs, category names, payment intent ids).
var ErrDuplicate = errors.New("duplicate entry")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// mysqlRowReferenced is ER_ROW_IS_REFERENCED_2.
const mysqlRowReferenced = 1451

// mysqlNoReferencedRow is ER_NO_REFERENCED_ROW_2.
const mysqlNoReferencedRow = 1452

// isDuplicate reports whether err is a MySQL unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// isReferenced reports whether err is a foreign-key restriction.
func isReferenced(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlRowReferenced
}

// fkReservationShowtime names the reservations → showtimes foreign key.
const fkReservationShowtime = "fk_reservations_showtime"

// isMissingParent reports whether err is a foreign key pointing nowhere.
func isMissingParent(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlNoReferencedRow
}

// isMissingParentVia is isMissingParent restricted to one constraint, for
// tables with several foreign keys.
func isMissingParentVia(err error, constraint string) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlNoReferencedRow &&
		strings.Contains(me.Message, "CONSTRAINT `"+constraint+"`")
}
