package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"coreledger/internal/models"
	"coreledger/internal/pagination"
)

// CreateAccountInput carries the fields needed to materialize a new account
// in the chart of accounts.
type CreateAccountInput struct {
	Code        string
	Name        string
	Description string
	AccountType models.AccountType
	Category    models.AccountCategory
	Subcategory string
	ParentID    *string
}

// AccountUpdateFields holds optional metadata updates. Nil fields are left
// unchanged. Code changes are rejected once the account has postings.
type AccountUpdateFields struct {
	Code        *string
	Name        *string
	Description *string
	Category    *models.AccountCategory
	Subcategory *string
}

// RegistryServicer owns the chart of accounts: creation, metadata,
// activation state, and hierarchy. It never writes balances except to
// shift rollups when a subtree moves.
type RegistryServicer interface {
	CreateAccount(input CreateAccountInput) (*models.Account, error)
	UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error)
	Reparent(accountID string, newParentID *string) error
	Deactivate(accountID string) error
	GetAccountByID(accountID string) (*models.Account, error)
	GetAccountByCode(code string) (*models.Account, error)
	ListAccounts(page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
}

// DraftLine is one proposed journal line. Amount is signed:
// positive = debit, negative = credit.
type DraftLine struct {
	AccountID string
	Amount    decimal.Decimal
}

// EntryDraft is a proposed journal entry prior to validation and commit.
type EntryDraft struct {
	EntryDate  time.Time
	Memo       string
	Reference  string
	ReversalOf *string
	Lines      []DraftLine
}

// LedgerServicer applies validated entries atomically, updating balances
// and appending to the audit trail.
type LedgerServicer interface {
	Post(draft EntryDraft) (*models.AuditRecord, error)
	Reverse(entryID string) (*models.AuditRecord, error)
	GetEntryByID(entryID string) (*models.JournalEntry, error)
}

// BalanceServicer computes point-in-time balances from the audit trail and
// rebuilds the cached balances after suspected inconsistency.
type BalanceServicer interface {
	BalanceAsOf(accountID string, at time.Time) (decimal.Decimal, error)
	RebuildAll() error
}

// AuditServicer is the append-only record of every committed entry.
// Append runs inside the ledger's commit transaction; a posting is
// committed only once its record is durably appended.
type AuditServicer interface {
	Append(tx *gorm.DB, payload *models.AuditPayload) (*models.AuditRecord, error)
	RecordsSince(cursor int64) *RecordIterator
	GetByEntryID(entryID string) (*models.AuditRecord, error)
}
