package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "coreledger/internal/errors"
	"coreledger/internal/models"
	"coreledger/internal/pagination"
)

// registryService owns the chart of accounts.
type registryService struct {
	db          *gorm.DB
	locks       *LockTable
	lockTimeout time.Duration
}

// NewRegistryService creates a new RegistryServicer. The lock table must be
// the same instance the ledger uses, so that rollup adjustments made while
// moving a subtree cannot interleave with in-flight postings.
func NewRegistryService(db *gorm.DB, locks *LockTable, lockTimeout time.Duration) RegistryServicer {
	return &registryService{db: db, locks: locks, lockTimeout: lockTimeout}
}

// CreateAccount materializes a new account with zero balance.
func (s *registryService) CreateAccount(input CreateAccountInput) (*models.Account, error) {
	if input.Code == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account code is required")
	}
	if input.Name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if !input.AccountType.Valid() {
		return nil, apperrors.ErrInvalidType
	}
	if !input.Category.ValidFor(input.AccountType) {
		return nil, apperrors.ErrInvalidCategory
	}

	var existing models.Account
	err := s.db.Where("code = ?", input.Code).First(&existing).Error
	if err == nil {
		return nil, apperrors.ErrDuplicateCode
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if input.ParentID != nil {
		// Hold the parent's update rights through the insert. A posting that
		// is mid-commit against the parent holds these rights until its lines
		// are durable, and hasPostings cannot see uncommitted lines.
		release, err := s.locks.acquire([]string{*input.ParentID}, s.lockTimeout)
		if err != nil {
			return nil, err
		}
		defer release()

		if err := s.checkParent(s.db, *input.ParentID); err != nil {
			return nil, err
		}
	}

	account := &models.Account{
		Code:        input.Code,
		Name:        input.Name,
		Description: input.Description,
		AccountType: input.AccountType,
		Category:    input.Category,
		Subcategory: input.Subcategory,
		IsActive:    true,
		ParentID:    input.ParentID,
		Balance:     decimal.Zero,
	}
	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return account, nil
}

// UpdateAccount applies metadata updates. The code is immutable once the
// account has postings; category changes must stay valid for the type.
func (s *registryService) UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if fields.Code != nil && *fields.Code != account.Code {
		if *fields.Code == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account code is required")
		}
		posted, err := s.hasPostings(accountID)
		if err != nil {
			return nil, err
		}
		if posted {
			return nil, apperrors.ErrCodeImmutable
		}
		var existing models.Account
		if err := s.db.Where("code = ? AND id <> ?", *fields.Code, accountID).First(&existing).Error; err == nil {
			return nil, apperrors.ErrDuplicateCode
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		updates["code"] = *fields.Code
	}
	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Category != nil {
		if !fields.Category.ValidFor(account.AccountType) {
			return nil, apperrors.ErrInvalidCategory
		}
		updates["category"] = *fields.Category
	}
	if fields.Subcategory != nil {
		updates["subcategory"] = *fields.Subcategory
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Where("id = ?", account.ID).First(account).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return account, nil
}

// Reparent moves an account under a new parent (or to the top level when
// newParentID is nil), re-validating acyclicity and the leaf/internal rule.
// Rollup balances along the old and new ancestor chains are shifted by the
// subtree's balance inside one transaction, under the same account locks the
// ledger uses.
func (s *registryService) Reparent(accountID string, newParentID *string) error {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return err
	}

	if newParentID != nil {
		if *newParentID == accountID {
			return apperrors.ErrCycleDetected
		}
		if err := s.checkParent(s.db, *newParentID); err != nil {
			return err
		}
		// Walk the ancestor chain from the proposed parent upward; if the
		// account itself appears, the edge would close a cycle.
		chain, err := s.ancestorChain(*newParentID)
		if err != nil {
			return err
		}
		for _, id := range chain {
			if id == accountID {
				return apperrors.ErrCycleDetected
			}
		}
	}

	oldChain, err := s.ancestorChainFrom(account.ParentID)
	if err != nil {
		return err
	}
	var newChain []string
	if newParentID != nil {
		newChain, err = s.ancestorChainFrom(newParentID)
		if err != nil {
			return err
		}
	}

	lockIDs := append(append([]string{accountID}, oldChain...), newChain...)
	release, err := s.locks.acquire(lockIDs, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	// Re-read under lock; the subtree balance drives the rollup shift.
	fresh, err := s.GetAccountByID(accountID)
	if err != nil {
		return err
	}

	// The chains were derived before the locks were taken. If the account or
	// any ancestor moved while we waited, the held locks no longer cover the
	// accounts the rollup shift must touch.
	freshOld, err := s.ancestorChainFrom(fresh.ParentID)
	if err != nil {
		return err
	}
	if !sameIDs(dedupSorted(oldChain), dedupSorted(freshOld)) {
		return apperrors.WithMessage(apperrors.ErrConcurrentModification,
			"account hierarchy changed while waiting for update rights; retry the move")
	}
	if newParentID != nil {
		freshNew, err := s.ancestorChainFrom(newParentID)
		if err != nil {
			return err
		}
		if !sameIDs(dedupSorted(newChain), dedupSorted(freshNew)) {
			return apperrors.WithMessage(apperrors.ErrConcurrentModification,
				"account hierarchy changed while waiting for update rights; retry the move")
		}
	}

	delta := fresh.Balance

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Account{}).Where("id = ?", accountID).
			Update("parent_id", newParentID).Error; err != nil {
			return err
		}
		if delta.IsZero() {
			return nil
		}
		for _, id := range oldChain {
			if err := adjustBalance(tx, id, delta.Neg()); err != nil {
				return err
			}
		}
		for _, id := range newChain {
			if err := adjustBalance(tx, id, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Deactivate hides an account from new postings. An account with a non-zero
// balance cannot be deactivated. The account's update rights are held for the
// duration, so deactivation cannot slip between a posting's post-lock
// re-validation and its commit.
func (s *registryService) Deactivate(accountID string) error {
	if _, err := s.GetAccountByID(accountID); err != nil {
		return err
	}

	release, err := s.locks.acquire([]string{accountID}, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return err
	}
	if !account.Balance.IsZero() {
		return apperrors.ErrNonZeroBalance
	}
	if err := s.db.Model(account).Update("is_active", false).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetAccountByID retrieves an account by id, active or not. Deactivated
// accounts remain valid for historical queries.
func (s *registryService) GetAccountByID(accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// GetAccountByCode retrieves an account by its human-readable code.
func (s *registryService) GetAccountByCode(code string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("code = ?", code).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// ListAccounts retrieves a paginated list of accounts ordered by code.
func (s *registryService) ListAccounts(page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Account{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Scopes(pagination.Paginate(page)).Order("code ASC").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// checkParent verifies that a proposed parent exists, is active, and can
// aggregate children. An account that already accepts direct postings can
// never be demoted to a rollup account.
func (s *registryService) checkParent(db *gorm.DB, parentID string) error {
	var parent models.Account
	if err := db.Where("id = ?", parentID).First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.WithMessage(apperrors.ErrInvalidParent, "parent account does not exist")
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !parent.IsActive {
		return apperrors.WithMessage(apperrors.ErrInvalidParent, "parent account is deactivated")
	}
	posted, err := s.hasPostings(parentID)
	if err != nil {
		return err
	}
	if posted {
		return apperrors.WithMessage(apperrors.ErrInvalidParent,
			"parent accepts direct postings and cannot aggregate children")
	}
	return nil
}

// hasPostings reports whether any journal line references the account.
func (s *registryService) hasPostings(accountID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.JournalLine{}).Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// ancestorChain returns the ancestor ids of the given account, nearest
// first, walking parent references with a visited-set guard.
func (s *registryService) ancestorChain(accountID string) ([]string, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}
	chain, err := s.ancestorChainFrom(account.ParentID)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// ancestorChainFrom walks upward starting at the given parent reference.
func (s *registryService) ancestorChainFrom(parentID *string) ([]string, error) {
	var chain []string
	visited := make(map[string]bool)
	cur := parentID
	for cur != nil && !visited[*cur] {
		visited[*cur] = true
		chain = append(chain, *cur)
		account, err := s.GetAccountByID(*cur)
		if err != nil {
			return nil, err
		}
		cur = account.ParentID
	}
	return chain, nil
}

// adjustBalance adds delta to an account's cached balance.
func adjustBalance(tx *gorm.DB, accountID string, delta decimal.Decimal) error {
	var account models.Account
	if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
		return err
	}
	return tx.Model(&account).Update("balance", account.Balance.Add(delta)).Error
}
