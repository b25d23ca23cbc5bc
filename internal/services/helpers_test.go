package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"coreledger/internal/pagination"
	"coreledger/internal/testutil"
)

const testLockTimeout = 2 * time.Second

// testStack bundles the services wired the way cmd/api wires them.
type testStack struct {
	db       *gorm.DB
	locks    *LockTable
	registry RegistryServicer
	ledger   LedgerServicer
	balance  BalanceServicer
	audit    AuditServicer
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	locks := NewLockTable()
	audit := NewAuditService(db)
	return &testStack{
		db:       db,
		locks:    locks,
		registry: NewRegistryService(db, locks, testLockTimeout),
		ledger:   NewLedgerService(db, locks, audit, testLockTimeout),
		balance:  NewBalanceService(db, locks, audit, testLockTimeout),
		audit:    audit,
	}
}

func listPage(page, size int) pagination.PageRequest {
	return pagination.PageRequest{Page: page, PageSize: size}
}
