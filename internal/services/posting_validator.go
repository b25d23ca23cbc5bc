package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "coreledger/internal/errors"
)

// ValidateEntry checks a proposed entry against a snapshot of account
// metadata before it is allowed to touch any balance. Rules are checked in
// order and the first violation is returned:
//
//  1. the entry has at least two lines
//  2. every referenced account exists, is active, and accepts direct postings
//  3. every amount is non-zero and carries at most four decimal places
//  4. the line amounts sum to exactly zero in fixed-point arithmetic
func ValidateEntry(draft EntryDraft, snap snapshot) error {
	if len(draft.Lines) < 2 {
		return apperrors.WithMessage(apperrors.ErrMalformedEntry,
			fmt.Sprintf("entry has %d line(s), need at least 2", len(draft.Lines)))
	}

	for i, line := range draft.Lines {
		state, ok := snap[line.AccountID]
		if !ok {
			return apperrors.WithMessage(apperrors.ErrUnknownAccount,
				fmt.Sprintf("line %d references unknown account %s", i+1, line.AccountID))
		}
		if !state.account.IsActive {
			return apperrors.WithMessage(apperrors.ErrInactiveAccount,
				fmt.Sprintf("line %d references deactivated account %s", i+1, state.account.Code))
		}
		if state.hasChildren {
			return apperrors.WithMessage(apperrors.ErrNonLeafAccount,
				fmt.Sprintf("line %d references rollup account %s", i+1, state.account.Code))
		}
	}

	for i, line := range draft.Lines {
		if line.Amount.IsZero() {
			return apperrors.WithMessage(apperrors.ErrMalformedEntry,
				fmt.Sprintf("line %d moves no value", i+1))
		}
		if !line.Amount.Equal(line.Amount.Truncate(4)) {
			return apperrors.WithMessage(apperrors.ErrInvalidAmount,
				fmt.Sprintf("line %d amount %s has more than 4 decimal places", i+1, line.Amount))
		}
	}

	sum := decimal.Zero
	for _, line := range draft.Lines {
		sum = sum.Add(line.Amount)
	}
	if !sum.IsZero() {
		return apperrors.WithMessage(apperrors.ErrUnbalancedEntry,
			fmt.Sprintf("lines sum to %s, want 0.0000", sum.StringFixed(4)))
	}

	return nil
}
