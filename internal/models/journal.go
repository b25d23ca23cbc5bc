package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is a balanced set of lines committed atomically against the
// ledger. Once committed an entry is immutable; corrections are made by
// posting a reversing entry, never by mutating history.
type JournalEntry struct {
	Base
	EntryDate time.Time `gorm:"not null;index" json:"entry_date"`
	Memo      string    `json:"memo,omitempty"`
	Reference string    `json:"reference,omitempty"`
	// ReversalOf links a reversing entry back to the entry it undoes.
	ReversalOf *string `gorm:"type:uuid" json:"reversal_of,omitempty"`

	Lines []JournalLine `gorm:"foreignKey:EntryID" json:"lines"`
}

// JournalLine is one side of a journal entry. Amount is signed:
// positive = debit, negative = credit. Lines reference leaf accounts only.
type JournalLine struct {
	Base
	EntryID   string          `gorm:"type:uuid;not null;index" json:"entry_id"`
	Position  int             `gorm:"not null" json:"position"`
	AccountID string          `gorm:"type:uuid;not null;index" json:"account_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
}
