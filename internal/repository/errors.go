// Package repository implements MySQL persistence for users, fields and
// bookings. The sentinel errors below let handlers tell expected failures
// apart from database errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrFieldNotFound is returned when a field id matches no row.
var ErrFieldNotFound = errors.New("field not found")

// ErrBookingNotFound is returned by detail reads of a missing booking.
var ErrBookingNotFound = errors.New("booking not found")

// ErrPhoneExists is returned when a user with the same phone already exists.
var ErrPhoneExists = errors.New("phone already registered")

// ErrConflict is returned when a delete cannot proceed because other rows
// still reference the record, such as a field with bookings. Handlers
// translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
)

func mysqlErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// IsDuplicateEntry reports whether err is a unique index violation.
func IsDuplicateEntry(err error) bool { return mysqlErrorNumber(err) == mysqlDuplicateEntry }

func isRowReferenced(err error) bool { return mysqlErrorNumber(err) == mysqlRowIsReferenced }
