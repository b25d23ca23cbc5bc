package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "coreledger/internal/errors"
	"coreledger/internal/models"
)

// ledgerService applies validated journal entries atomically.
type ledgerService struct {
	db          *gorm.DB
	locks       *LockTable
	audit       AuditServicer
	lockTimeout time.Duration
}

// NewLedgerService creates a new LedgerServicer sharing the given lock table
// with the registry.
func NewLedgerService(db *gorm.DB, locks *LockTable, audit AuditServicer, lockTimeout time.Duration) LedgerServicer {
	return &ledgerService{db: db, locks: locks, audit: audit, lockTimeout: lockTimeout}
}

// Post validates the draft against a snapshot, acquires update rights for
// every touched account (line accounts plus all rollup ancestors) in
// ascending id order, re-validates against fresh state, and commits the
// entry, the balance updates, and the audit record in a single transaction.
// Either every touched account reflects the update and the audit record is
// appended, or none do.
func (s *ledgerService) Post(draft EntryDraft) (*models.AuditRecord, error) {
	if draft.EntryDate.IsZero() {
		draft.EntryDate = time.Now().UTC()
	}

	lineIDs := make([]string, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		lineIDs = append(lineIDs, line.AccountID)
	}

	snap, err := loadSnapshot(s.db, lineIDs)
	if err != nil {
		return nil, err
	}
	if err := ValidateEntry(draft, snap); err != nil {
		return nil, err
	}

	lockIDs := snap.ids()
	release, err := s.locks.acquire(lockIDs, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	// The pre-lock snapshot may be stale: an account can be deactivated or
	// reparented between validation and lock acquisition. Re-read and fail
	// rather than apply against stale state.
	fresh, err := loadSnapshot(s.db, lineIDs)
	if err != nil {
		return nil, err
	}
	if err := ValidateEntry(draft, fresh); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConcurrentModification, err)
	}
	if !sameIDs(lockIDs, fresh.ids()) {
		return nil, apperrors.WithMessage(apperrors.ErrConcurrentModification,
			"account hierarchy changed while the posting was in flight; retry the posting")
	}

	// Apply each line's signed amount to its account and propagate the delta
	// up the ancestor chain.
	balances := make(map[string]decimal.Decimal, len(fresh))
	for id, state := range fresh {
		balances[id] = state.account.Balance
	}
	for _, line := range draft.Lines {
		balances[line.AccountID] = balances[line.AccountID].Add(line.Amount)
		for _, ancestor := range fresh.ancestors(line.AccountID) {
			balances[ancestor] = balances[ancestor].Add(line.Amount)
		}
	}

	entry := &models.JournalEntry{
		EntryDate:  draft.EntryDate,
		Memo:       draft.Memo,
		Reference:  draft.Reference,
		ReversalOf: draft.ReversalOf,
	}

	var record *models.AuditRecord
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		for i, line := range draft.Lines {
			jl := &models.JournalLine{
				EntryID:   entry.ID,
				Position:  i + 1,
				AccountID: line.AccountID,
				Amount:    line.Amount,
			}
			if err := tx.Create(jl).Error; err != nil {
				return err
			}
		}

		for _, id := range lockIDs {
			if err := tx.Model(&models.Account{}).Where("id = ?", id).
				Update("balance", balances[id]).Error; err != nil {
				return err
			}
		}

		payload := &models.AuditPayload{
			EntryID:    entry.ID,
			EntryDate:  entry.EntryDate,
			Memo:       entry.Memo,
			Reference:  entry.Reference,
			ReversalOf: entry.ReversalOf,
		}
		for _, line := range draft.Lines {
			payload.Lines = append(payload.Lines, models.AuditLine{
				AccountID: line.AccountID,
				Amount:    line.Amount,
			})
		}
		for _, id := range lockIDs {
			payload.Balances = append(payload.Balances, models.AuditBalance{
				AccountID: id,
				Balance:   balances[id],
			})
		}

		var appendErr error
		record, appendErr = s.audit.Append(tx, payload)
		return appendErr
	})
	if err != nil {
		// The commit is the durability boundary: any failure here means the
		// posting is uncommitted and the caller may retry.
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistenceFailure, err)
	}

	return record, nil
}

// Reverse synthesizes and posts the entry with every line's sign inverted.
func (s *ledgerService) Reverse(entryID string) (*models.AuditRecord, error) {
	entry, err := s.GetEntryByID(entryID)
	if err != nil {
		return nil, err
	}

	draft := EntryDraft{
		EntryDate:  time.Now().UTC(),
		Memo:       fmt.Sprintf("Reversal of %s", entry.ID),
		Reference:  entry.Reference,
		ReversalOf: &entry.ID,
	}
	for _, line := range entry.Lines {
		draft.Lines = append(draft.Lines, DraftLine{
			AccountID: line.AccountID,
			Amount:    line.Amount.Neg(),
		})
	}

	return s.Post(draft)
}

// GetEntryByID retrieves a committed entry with its lines in posting order.
func (s *ledgerService) GetEntryByID(entryID string) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	err := s.db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("id = ?", entryID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEntryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &entry, nil
}

// sameIDs reports whether two ascending id slices are equal.
func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
