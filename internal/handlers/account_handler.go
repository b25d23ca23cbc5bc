package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "coreledger/internal/errors"
	"coreledger/internal/models"
	"coreledger/internal/pagination"
	"coreledger/internal/services"
)

// AccountHandler handles chart-of-accounts requests.
type AccountHandler struct {
	registry services.RegistryServicer
	balance  services.BalanceServicer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(registry services.RegistryServicer, balance services.BalanceServicer) *AccountHandler {
	return &AccountHandler{registry: registry, balance: balance}
}

// CreateAccountRequest represents the request payload for creating an account.
type CreateAccountRequest struct {
	Code        string  `json:"code" binding:"required,min=1,max=20"`
	Name        string  `json:"name" binding:"required,min=1,max=100"`
	Description string  `json:"description" binding:"max=500"`
	AccountType string  `json:"account_type" binding:"required,account_type"`
	Category    string  `json:"category" binding:"required,account_category"`
	Subcategory string  `json:"subcategory" binding:"max=100"`
	ParentID    *string `json:"parent_id" binding:"omitempty,uuid"`
}

// UpdateAccountRequest represents the request payload for updating account metadata.
type UpdateAccountRequest struct {
	Code        *string `json:"code" binding:"omitempty,min=1,max=20"`
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Category    *string `json:"category" binding:"omitempty,account_category"`
	Subcategory *string `json:"subcategory" binding:"omitempty,max=100"`
}

// ReparentRequest represents the request payload for moving an account.
// A null parent_id moves the account to the top level.
type ReparentRequest struct {
	ParentID *string `json:"parent_id" binding:"omitempty,uuid"`
}

// CreateAccount handles the creation of a new account.
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	account, err := h.registry.CreateAccount(services.CreateAccountInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		AccountType: models.AccountType(req.AccountType),
		Category:    models.AccountCategory(req.Category),
		Subcategory: req.Subcategory,
		ParentID:    req.ParentID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// ListAccounts returns a paginated list of accounts ordered by code.
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.registry.ListAccounts(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAccount returns a single account by id, alongside its balance restated
// from the account's natural perspective (credit-normal accounts report
// credits as positive).
func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	account, err := h.registry.GetAccountByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":        account,
		"normal_balance": account.NormalBalance(),
	})
}

// UpdateAccount applies metadata updates to an account.
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	fields := services.AccountUpdateFields{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Subcategory: req.Subcategory,
	}
	if req.Category != nil {
		category := models.AccountCategory(*req.Category)
		fields.Category = &category
	}

	account, err := h.registry.UpdateAccount(id, fields)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// Reparent moves an account under a new parent.
func (h *AccountHandler) Reparent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ReparentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if err := h.registry.Reparent(id, req.ParentID); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Deactivate marks an account inactive. Deactivated accounts reject new
// postings but remain valid for historical queries.
func (h *AccountHandler) Deactivate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.registry.Deactivate(id); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// BalanceAsOf returns the account's balance replayed from the audit trail at
// the instant given by the `at` query parameter (RFC 3339, default now).
func (h *AccountHandler) BalanceAsOf(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	at := time.Now().UTC()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "at must be RFC 3339"))
			return
		}
		at = parsed
	}

	balance, err := h.balance.BalanceAsOf(id, at)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id": id,
		"at":         at,
		"balance":    balance,
	})
}
