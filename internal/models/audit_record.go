package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// AuditRecord is one immutable row per committed journal entry, keyed by a
// monotonic sequence that fixes the global commit order. The payload is
// self-contained (entry header, lines, post-commit balances of every touched
// account including ancestors) so replay never depends on the journal tables.
type AuditRecord struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement" json:"seq"`
	EntryID    string    `gorm:"type:uuid;not null;uniqueIndex" json:"entry_id"`
	RecordedAt time.Time `gorm:"not null;index" json:"recorded_at"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
}

// AuditPayload is the JSON body of an audit record.
type AuditPayload struct {
	EntryID    string         `json:"entry_id"`
	EntryDate  time.Time      `json:"entry_date"`
	Memo       string         `json:"memo,omitempty"`
	Reference  string         `json:"reference,omitempty"`
	ReversalOf *string        `json:"reversal_of,omitempty"`
	Lines      []AuditLine    `json:"lines"`
	Balances   []AuditBalance `json:"balances"`
}

// AuditLine mirrors a committed journal line (positive = debit).
type AuditLine struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// AuditBalance is the post-commit balance of one touched account,
// including rollup ancestors.
type AuditBalance struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// DecodePayload unmarshals the record's JSON payload.
func (r *AuditRecord) DecodePayload() (*AuditPayload, error) {
	var payload AuditPayload
	if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
