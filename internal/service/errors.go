package service

import (
	"errors"
	"fmt"
	"strings"
)

// Storage failures are classified so handlers can map them to actionable
// responses instead of a generic 500: bad credentials and a missing schema
// are operator mistakes, everything else is transient.
var (
	ErrAuthFailed       = errors.New("storage authentication failed")
	ErrSchemaMissing    = errors.New("storage schema missing")
	ErrStoreUnavailable = errors.New("storage unavailable")

	ErrNotFound      = errors.New("not found")
	ErrInvalidStake  = errors.New("stake must be positive")
	ErrInvalidBudget = errors.New("budget must be positive")
)

func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "password authentication failed") ||
		strings.Contains(msg, "invalid authorization"):
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	case strings.Contains(msg, "does not exist") || strings.Contains(msg, "pgrst205") ||
		strings.Contains(msg, "undefined_table"):
		return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
