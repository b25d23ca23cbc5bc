package models

import (
	"github.com/shopspring/decimal"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a member of the closed account type enumeration.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// IsDebitNormal reports whether accounts of this type carry a debit-normal
// balance (asset and expense accounts grow when debited).
func (t AccountType) IsDebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// IsCreditNormal reports whether accounts of this type carry a credit-normal balance.
func (t AccountType) IsCreditNormal() bool {
	return !t.IsDebitNormal()
}

// AccountCategory provides primary categorization of accounts within a type.
type AccountCategory string

const (
	CategoryCurrentAsset        AccountCategory = "CURRENT_ASSET"
	CategoryFixedAsset          AccountCategory = "FIXED_ASSET"
	CategoryOtherAsset          AccountCategory = "OTHER_ASSET"
	CategoryCurrentLiability    AccountCategory = "CURRENT_LIABILITY"
	CategoryLongTermLiability   AccountCategory = "LONG_TERM_LIABILITY"
	CategoryOtherLiability      AccountCategory = "OTHER_LIABILITY"
	CategoryOwnerEquity         AccountCategory = "OWNER_EQUITY"
	CategoryRetainedEarnings    AccountCategory = "RETAINED_EARNINGS"
	CategoryOperatingRevenue    AccountCategory = "OPERATING_REVENUE"
	CategoryNonOperatingRevenue AccountCategory = "NON_OPERATING_REVENUE"
	CategoryOperatingExpense    AccountCategory = "OPERATING_EXPENSE"
	CategoryNonOperatingExpense AccountCategory = "NON_OPERATING_EXPENSE"
)

// CategoriesFor returns the categories valid for the given account type.
func CategoriesFor(t AccountType) []AccountCategory {
	switch t {
	case AccountTypeAsset:
		return []AccountCategory{CategoryCurrentAsset, CategoryFixedAsset, CategoryOtherAsset}
	case AccountTypeLiability:
		return []AccountCategory{CategoryCurrentLiability, CategoryLongTermLiability, CategoryOtherLiability}
	case AccountTypeEquity:
		return []AccountCategory{CategoryOwnerEquity, CategoryRetainedEarnings}
	case AccountTypeRevenue:
		return []AccountCategory{CategoryOperatingRevenue, CategoryNonOperatingRevenue}
	case AccountTypeExpense:
		return []AccountCategory{CategoryOperatingExpense, CategoryNonOperatingExpense}
	}
	return nil
}

// ValidFor reports whether the category belongs to the given account type.
func (c AccountCategory) ValidFor(t AccountType) bool {
	for _, valid := range CategoriesFor(t) {
		if c == valid {
			return true
		}
	}
	return false
}

// Account is a node in the chart of accounts. The parent relation forms a
// forest: an account either accepts direct postings (leaf) or aggregates its
// children's balances (rollup), never both. Balance is a derived cache over
// the audit trail; the ledger is its only writer.
type Account struct {
	Base
	Code        string          `gorm:"uniqueIndex;not null" json:"code"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description,omitempty"`
	AccountType AccountType     `gorm:"not null" json:"account_type"`
	Category    AccountCategory `gorm:"not null" json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	ParentID    *string         `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`

	// Relationships
	Children []Account `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// NormalBalance returns the balance signed from the account's natural
// perspective: debit-normal accounts report debits as positive, credit-normal
// accounts report credits as positive.
func (a *Account) NormalBalance() decimal.Decimal {
	if a.AccountType.IsCreditNormal() {
		return a.Balance.Neg()
	}
	return a.Balance
}
