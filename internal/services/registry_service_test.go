package services

import (
	"testing"
	"time"

	"coreledger/internal/models"
	"coreledger/internal/testutil"
)

func validInput(code string) CreateAccountInput {
	return CreateAccountInput{
		Code:        code,
		Name:        "Cash",
		AccountType: models.AccountTypeAsset,
		Category:    models.CategoryCurrentAsset,
	}
}

func TestCreateAccount(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		stack := newTestStack(t)

		account, err := stack.registry.CreateAccount(validInput("1000"))
		testutil.AssertNoError(t, err)

		if account.ID == "" {
			t.Fatal("expected non-empty account ID")
		}
		if account.Code != "1000" {
			t.Errorf("expected code 1000, got %s", account.Code)
		}
		if !account.IsActive {
			t.Error("expected account to be active")
		}
		testutil.AssertDecimalEqual(t, "0", account.Balance)
	})

	t.Run("duplicate_code", func(t *testing.T) {
		stack := newTestStack(t)

		_, err := stack.registry.CreateAccount(validInput("1000"))
		testutil.AssertNoError(t, err)

		_, err = stack.registry.CreateAccount(validInput("1000"))
		testutil.AssertAppError(t, err, "DUPLICATE_CODE")
	})

	t.Run("unknown_type", func(t *testing.T) {
		stack := newTestStack(t)

		input := validInput("1000")
		input.AccountType = "SOMETHING"
		_, err := stack.registry.CreateAccount(input)
		testutil.AssertAppError(t, err, "INVALID_ACCOUNT_TYPE")
	})

	t.Run("category_type_mismatch", func(t *testing.T) {
		stack := newTestStack(t)

		input := validInput("1000")
		input.Category = models.CategoryOperatingRevenue
		_, err := stack.registry.CreateAccount(input)
		testutil.AssertAppError(t, err, "INVALID_CATEGORY")
	})

	t.Run("missing_parent", func(t *testing.T) {
		stack := newTestStack(t)

		missing := "00000000-0000-0000-0000-000000000000"
		input := validInput("1000")
		input.ParentID = &missing
		_, err := stack.registry.CreateAccount(input)
		testutil.AssertAppError(t, err, "INVALID_PARENT")
	})

	t.Run("inactive_parent", func(t *testing.T) {
		stack := newTestStack(t)

		parent := testutil.CreateInactiveTestAccount(t, stack.db, models.AccountTypeAsset)
		input := validInput("1000")
		input.ParentID = &parent.ID
		_, err := stack.registry.CreateAccount(input)
		testutil.AssertAppError(t, err, "INVALID_PARENT")
	})

	t.Run("parent_held_by_posting", func(t *testing.T) {
		stack := newTestStack(t)

		parent := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)

		// Attaching a child must wait out a posting that holds the parent:
		// the posting's lines are invisible until its commit.
		release, err := stack.locks.acquire([]string{parent.ID}, time.Second)
		testutil.AssertNoError(t, err)
		defer release()

		impatient := NewRegistryService(stack.db, stack.locks, 50*time.Millisecond)
		input := validInput("1000")
		input.ParentID = &parent.ID
		_, err = impatient.CreateAccount(input)
		testutil.AssertAppError(t, err, "LEDGER_BUSY")
	})

	t.Run("parent_with_postings", func(t *testing.T) {
		stack := newTestStack(t)

		cash := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		revenue := testutil.CreateTestAccount(t, stack.db, models.AccountTypeRevenue)
		_, err := stack.ledger.Post(draftWith(
			DraftLine{AccountID: cash.ID, Amount: amt("10.00")},
			DraftLine{AccountID: revenue.ID, Amount: amt("-10.00")},
		))
		testutil.AssertNoError(t, err)

		// An account that accepts direct postings can never become a rollup.
		input := validInput("1000")
		input.ParentID = &cash.ID
		_, err = stack.registry.CreateAccount(input)
		testutil.AssertAppError(t, err, "INVALID_PARENT")
	})
}

func TestReparent(t *testing.T) {
	t.Run("self_parent", func(t *testing.T) {
		stack := newTestStack(t)

		account := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		err := stack.registry.Reparent(account.ID, &account.ID)
		testutil.AssertAppError(t, err, "CYCLE_DETECTED")
	})

	t.Run("descendant_cycle", func(t *testing.T) {
		stack := newTestStack(t)

		top := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		child := testutil.CreateTestAccountWithParent(t, stack.db, models.AccountTypeAsset, &top.ID)
		grandchild := testutil.CreateTestAccountWithParent(t, stack.db, models.AccountTypeAsset, &child.ID)

		err := stack.registry.Reparent(top.ID, &grandchild.ID)
		testutil.AssertAppError(t, err, "CYCLE_DETECTED")
	})

	t.Run("detach_to_top_level", func(t *testing.T) {
		stack := newTestStack(t)

		top := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		child := testutil.CreateTestAccountWithParent(t, stack.db, models.AccountTypeAsset, &top.ID)

		err := stack.registry.Reparent(child.ID, nil)
		testutil.AssertNoError(t, err)

		reloaded, err := stack.registry.GetAccountByID(child.ID)
		testutil.AssertNoError(t, err)
		if reloaded.ParentID != nil {
			t.Errorf("expected nil parent, got %v", *reloaded.ParentID)
		}
	})

	t.Run("hierarchy_changed_while_waiting", func(t *testing.T) {
		stack := newTestStack(t)
		db := stack.db

		rootA := testutil.CreateTestAccount(t, db, models.AccountTypeAsset)
		rootB := testutil.CreateTestAccount(t, db, models.AccountTypeAsset)
		rootC := testutil.CreateTestAccount(t, db, models.AccountTypeAsset)
		leaf := testutil.CreateTestAccountWithParent(t, db, models.AccountTypeAsset, &rootA.ID)

		release, err := stack.locks.acquire([]string{leaf.ID}, time.Second)
		testutil.AssertNoError(t, err)

		done := make(chan error, 1)
		go func() {
			done <- stack.registry.Reparent(leaf.ID, &rootB.ID)
		}()

		// While the move waits on the leaf's update rights, shift the leaf
		// under a third root behind its back. The waiter's precomputed chains
		// no longer cover the accounts the rollup shift must touch.
		time.Sleep(50 * time.Millisecond)
		err = db.Model(&models.Account{}).Where("id = ?", leaf.ID).
			Update("parent_id", rootC.ID).Error
		testutil.AssertNoError(t, err)
		release()

		testutil.AssertAppError(t, <-done, "CONCURRENT_MODIFICATION")
	})

	t.Run("moves_rollup_balance", func(t *testing.T) {
		stack := newTestStack(t)
		db := stack.db

		oldRoot := testutil.CreateTestAccount(t, db, models.AccountTypeAsset)
		newRoot := testutil.CreateTestAccount(t, db, models.AccountTypeAsset)
		leaf := testutil.CreateTestAccountWithParent(t, db, models.AccountTypeAsset, &oldRoot.ID)
		revenue := testutil.CreateTestAccount(t, db, models.AccountTypeRevenue)

		_, err := stack.ledger.Post(draftWith(
			DraftLine{AccountID: leaf.ID, Amount: amt("75.00")},
			DraftLine{AccountID: revenue.ID, Amount: amt("-75.00")},
		))
		testutil.AssertNoError(t, err)

		err = stack.registry.Reparent(leaf.ID, &newRoot.ID)
		testutil.AssertNoError(t, err)

		oldReloaded, _ := stack.registry.GetAccountByID(oldRoot.ID)
		newReloaded, _ := stack.registry.GetAccountByID(newRoot.ID)
		testutil.AssertDecimalEqual(t, "0", oldReloaded.Balance)
		testutil.AssertDecimalEqual(t, "75.00", newReloaded.Balance)
	})
}

func TestDeactivate(t *testing.T) {
	t.Run("zero_balance", func(t *testing.T) {
		stack := newTestStack(t)

		account := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		err := stack.registry.Deactivate(account.ID)
		testutil.AssertNoError(t, err)

		reloaded, _ := stack.registry.GetAccountByID(account.ID)
		if reloaded.IsActive {
			t.Error("expected account to be inactive")
		}
	})

	t.Run("nonzero_balance", func(t *testing.T) {
		stack := newTestStack(t)

		cash := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		revenue := testutil.CreateTestAccount(t, stack.db, models.AccountTypeRevenue)
		_, err := stack.ledger.Post(draftWith(
			DraftLine{AccountID: cash.ID, Amount: amt("10.00")},
			DraftLine{AccountID: revenue.ID, Amount: amt("-10.00")},
		))
		testutil.AssertNoError(t, err)

		err = stack.registry.Deactivate(cash.ID)
		testutil.AssertAppError(t, err, "HAS_NONZERO_BALANCE")
	})

	t.Run("waits_for_in_flight_posting", func(t *testing.T) {
		stack := newTestStack(t)

		cash := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)

		// Simulate a posting past re-validation and not yet committed: it
		// holds the account's update rights the whole time.
		release, err := stack.locks.acquire([]string{cash.ID}, time.Second)
		testutil.AssertNoError(t, err)

		impatient := NewRegistryService(stack.db, stack.locks, 50*time.Millisecond)
		err = impatient.Deactivate(cash.ID)
		testutil.AssertAppError(t, err, "LEDGER_BUSY")

		reloaded, _ := stack.registry.GetAccountByID(cash.ID)
		if !reloaded.IsActive {
			t.Error("expected account to stay active while a posting held it")
		}

		release()
		err = stack.registry.Deactivate(cash.ID)
		testutil.AssertNoError(t, err)
	})

	t.Run("rejects_subsequent_postings", func(t *testing.T) {
		stack := newTestStack(t)

		cash := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		revenue := testutil.CreateTestAccount(t, stack.db, models.AccountTypeRevenue)

		err := stack.registry.Deactivate(cash.ID)
		testutil.AssertNoError(t, err)

		_, err = stack.ledger.Post(draftWith(
			DraftLine{AccountID: cash.ID, Amount: amt("10.00")},
			DraftLine{AccountID: revenue.ID, Amount: amt("-10.00")},
		))
		testutil.AssertAppError(t, err, "INACTIVE_ACCOUNT")
	})
}

func TestUpdateAccount(t *testing.T) {
	t.Run("metadata", func(t *testing.T) {
		stack := newTestStack(t)

		account := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		name := "Petty Cash"
		subcategory := "drawer"
		updated, err := stack.registry.UpdateAccount(account.ID, AccountUpdateFields{
			Name:        &name,
			Subcategory: &subcategory,
		})
		testutil.AssertNoError(t, err)

		if updated.Name != name {
			t.Errorf("expected name %q, got %q", name, updated.Name)
		}
		if updated.Subcategory != subcategory {
			t.Errorf("expected subcategory %q, got %q", subcategory, updated.Subcategory)
		}
	})

	t.Run("code_immutable_after_posting", func(t *testing.T) {
		stack := newTestStack(t)

		cash := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		revenue := testutil.CreateTestAccount(t, stack.db, models.AccountTypeRevenue)
		_, err := stack.ledger.Post(draftWith(
			DraftLine{AccountID: cash.ID, Amount: amt("10.00")},
			DraftLine{AccountID: revenue.ID, Amount: amt("-10.00")},
		))
		testutil.AssertNoError(t, err)

		newCode := "9999"
		_, err = stack.registry.UpdateAccount(cash.ID, AccountUpdateFields{Code: &newCode})
		testutil.AssertAppError(t, err, "CODE_IMMUTABLE")
	})

	t.Run("category_must_match_type", func(t *testing.T) {
		stack := newTestStack(t)

		account := testutil.CreateTestAccount(t, stack.db, models.AccountTypeAsset)
		category := models.CategoryOperatingExpense
		_, err := stack.registry.UpdateAccount(account.ID, AccountUpdateFields{Category: &category})
		testutil.AssertAppError(t, err, "INVALID_CATEGORY")
	})
}

func TestListAccounts(t *testing.T) {
	stack := newTestStack(t)

	for _, code := range []string{"3000", "1000", "2000"} {
		_, err := stack.registry.CreateAccount(validInput(code))
		testutil.AssertNoError(t, err)
	}

	result, err := stack.registry.ListAccounts(listPage(1, 20))
	testutil.AssertNoError(t, err)

	if result.TotalItems != 3 {
		t.Fatalf("expected 3 accounts, got %d", result.TotalItems)
	}
	codes := []string{result.Data[0].Code, result.Data[1].Code, result.Data[2].Code}
	if codes[0] != "1000" || codes[1] != "2000" || codes[2] != "3000" {
		t.Errorf("expected accounts ordered by code, got %v", codes)
	}
}

func TestGetAccountByCode(t *testing.T) {
	stack := newTestStack(t)

	created, err := stack.registry.CreateAccount(validInput("1000"))
	testutil.AssertNoError(t, err)

	found, err := stack.registry.GetAccountByCode("1000")
	testutil.AssertNoError(t, err)
	if found.ID != created.ID {
		t.Errorf("expected account %s, got %s", created.ID, found.ID)
	}

	_, err = stack.registry.GetAccountByCode("missing")
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}
