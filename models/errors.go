package models

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

var (
	// ErrDBNotInitialized is returned when the DB connection has not been established.
	ErrDBNotInitialized = errors.New("database not initialized")
	// ErrItemNotFound is returned when an inventory item or product id does not resolve.
	ErrItemNotFound = errors.New("item not found")
	// ErrInsufficientStock is returned when a consumption would drive stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ConversionNotFoundError is returned when no direct, reverse, or base-mediated
// path connects two units. Callers must treat this as a hard error; quantities
// are never defaulted to 1:1.
type ConversionNotFoundError struct {
	FromUnitId int
	ToUnitId   int
}

func (e *ConversionNotFoundError) Error() string {
	return fmt.Sprintf("no conversion path from unit %d to unit %d", e.FromUnitId, e.ToUnitId)
}

// IsConversionNotFound reports whether err is a ConversionNotFoundError.
func IsConversionNotFound(err error) bool {
	var cnf *ConversionNotFoundError
	return errors.As(err, &cnf)
}

// isDuplicateKeyError reports a MySQL unique-index violation (error 1062).
// The pre-insert uniqueness checks race with concurrent writers; the unique
// index is the real guard and this maps its failure to a clean message.
func isDuplicateKeyError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
