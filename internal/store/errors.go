package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// StoreError carries a machine-readable code alongside the wrapped driver
// error so callers can branch on failure class without parsing messages.
type StoreError struct {
	Op   string
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store: %s: [%s] %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// sqlStater is satisfied by pgconn.PgError without importing the driver.
type sqlStater interface {
	SQLState() string
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &StoreError{Op: op, Code: "not_found", Err: ErrNotFound}
	}
	var state sqlStater
	if errors.As(err, &state) {
		return &StoreError{Op: op, Code: state.SQLState(), Err: err}
	}
	return &StoreError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	var se *StoreError
	return errors.As(err, &se) && se.Code == "not_found"
}

// IsUndefinedColumn reports whether err came from patching a column the
// schema does not have. Postgres signals SQLSTATE 42703; sqlite only gives
// a "no such column" message.
func IsUndefinedColumn(err error) bool {
	if err == nil {
		return false
	}
	var se *StoreError
	if errors.As(err, &se) && se.Code == "42703" {
		return true
	}
	return strings.Contains(err.Error(), "no such column")
}
