package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"coreledger/internal/models"
)

// counter provides unique account codes across fixtures within a test run.
var counter atomic.Int64

func nextCode() string {
	return fmt.Sprintf("T-%04d", counter.Add(1))
}

// CreateTestAccount creates an active leaf account of the given type with a
// unique code and zero balance.
func CreateTestAccount(t *testing.T, db *gorm.DB, accountType models.AccountType) *models.Account {
	t.Helper()
	return CreateTestAccountWithParent(t, db, accountType, nil)
}

// CreateTestAccountWithParent creates an active account under the given parent.
func CreateTestAccountWithParent(t *testing.T, db *gorm.DB, accountType models.AccountType, parentID *string) *models.Account {
	t.Helper()

	categories := models.CategoriesFor(accountType)
	if len(categories) == 0 {
		t.Fatalf("no categories for account type %s", accountType)
	}

	code := nextCode()
	account := &models.Account{
		Code:        code,
		Name:        "Test " + code,
		AccountType: accountType,
		Category:    categories[0],
		IsActive:    true,
		ParentID:    parentID,
		Balance:     decimal.Zero,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateInactiveTestAccount creates a deactivated leaf account.
func CreateInactiveTestAccount(t *testing.T, db *gorm.DB, accountType models.AccountType) *models.Account {
	t.Helper()

	account := CreateTestAccount(t, db, accountType)
	if err := db.Model(account).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate test account: %v", err)
	}
	account.IsActive = false
	return account
}
