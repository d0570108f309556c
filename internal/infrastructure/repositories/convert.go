package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// parseDecimal converts a stored numeric column back into a decimal.
// Columns are written from decimal.String() so a parse failure means the
// row was corrupted outside the application.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt decimal column %q: %w", s, err)
	}
	return d, nil
}

// isDuplicateErr reports whether err is a unique-key violation. Postgres
// errors arrive translated by GORM; the sqlite driver used in tests leaks
// the raw constraint message.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

// isCheckViolation reports whether err comes from the named CHECK
// constraint.
func isCheckViolation(err error, constraint string) bool {
	return strings.Contains(err.Error(), constraint)
}
