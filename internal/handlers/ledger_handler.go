package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "coreledger/internal/errors"
	"coreledger/internal/models"
	"coreledger/internal/services"
)

// LedgerHandler handles posting, reversal, and audit trail requests.
type LedgerHandler struct {
	ledger  services.LedgerServicer
	balance services.BalanceServicer
	audit   services.AuditServicer
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger services.LedgerServicer, balance services.BalanceServicer, audit services.AuditServicer) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, balance: balance, audit: audit}
}

// EntryLineRequest is one proposed journal line. Amount is a decimal string,
// positive = debit, negative = credit.
type EntryLineRequest struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	Amount    string `json:"amount" binding:"required,decimal_amount"`
}

// PostEntryRequest represents the request payload for posting a journal entry.
type PostEntryRequest struct {
	EntryDate *time.Time         `json:"entry_date"`
	Memo      string             `json:"memo" binding:"max=500"`
	Reference string             `json:"reference" binding:"max=100"`
	Lines     []EntryLineRequest `json:"lines" binding:"required,min=2,dive"`
}

// PostEntry validates and commits a journal entry.
func (h *LedgerHandler) PostEntry(c *gin.Context) {
	var req PostEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft := services.EntryDraft{
		Memo:      req.Memo,
		Reference: req.Reference,
	}
	if req.EntryDate != nil {
		draft.EntryDate = *req.EntryDate
	}
	for _, line := range req.Lines {
		amount, err := decimal.NewFromString(line.Amount)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid amount: "+line.Amount))
			return
		}
		draft.Lines = append(draft.Lines, services.DraftLine{
			AccountID: line.AccountID,
			Amount:    amount,
		})
	}

	record, err := h.ledger.Post(draft)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"record": record})
}

// GetEntry returns a committed entry with its lines.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	entry, err := h.ledger.GetEntryByID(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// ReverseEntry posts the sign-inverted counterpart of a committed entry.
func (h *LedgerHandler) ReverseEntry(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	record, err := h.ledger.Reverse(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"record": record})
}

// RecordsSince streams a page of audit records in commit order, starting
// after the `cursor` query parameter. The response carries the next cursor so
// callers can resume.
func (h *LedgerHandler) RecordsSince(c *gin.Context) {
	var cursor int64
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "cursor must be a non-negative integer"))
			return
		}
		cursor = parsed
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must be between 1 and 1000"))
			return
		}
		limit = parsed
	}

	records := make([]models.AuditRecord, 0, limit)
	next := cursor
	it := h.audit.RecordsSince(cursor)
	for len(records) < limit && it.Next() {
		record := it.Record()
		records = append(records, *record)
		next = record.Seq
	}
	if err := it.Err(); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records":     records,
		"next_cursor": next,
	})
}

// Rebuild recomputes every cached balance from the audit trail.
func (h *LedgerHandler) Rebuild(c *gin.Context) {
	if err := h.balance.RebuildAll(); err != nil {
		respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
