// Package quota enforces the record limit for callers without a premium
// account.
package quota

import (
	"fmt"

	"github.com/mcncl/jsonflat/internal/errors"
)

// DefaultTrialLimit is the number of records a trial caller may convert at once.
const DefaultTrialLimit = 50

// Policy caps the rows of a single conversion. A Limit of zero or less
// disables the check.
type Policy struct {
	Limit int
}

// NewPolicy returns a policy with the given limit.
func NewPolicy(limit int) Policy {
	return Policy{Limit: limit}
}

// LimitError describes a rejected conversion.
type LimitError struct {
	RowsProcessed int
	Limit         int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("Free trial is limited to %d records. Your conversion would process %d records. Please upgrade for unlimited access.",
		e.Limit, e.RowsProcessed)
}

// Unwrap lets callers match errors.ErrTrialLimitExceeded.
func (e *LimitError) Unwrap() error { return errors.ErrTrialLimitExceeded }

// Check is called after conversion, when the real row count is known.
// Premium callers are never limited.
func (p Policy) Check(rowsProcessed int, premium bool) error {
	if premium || p.Limit <= 0 || rowsProcessed <= p.Limit {
		return nil
	}
	limitErr := &LimitError{RowsProcessed: rowsProcessed, Limit: p.Limit}
	return errors.NewQuotaError(limitErr.Error(), limitErr)
}
