package services

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "coreledger/internal/errors"
	"coreledger/internal/models"
)

// auditIteratorPageSize is the number of records fetched per page while
// replaying the trail.
const auditIteratorPageSize = 100

// auditService maintains the append-only audit trail.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Append writes one immutable record for a committed entry inside the
// caller's transaction. Records are never overwritten or reordered; the
// auto-incremented sequence fixes the commit order.
func (s *auditService) Append(tx *gorm.DB, payload *models.AuditPayload) (*models.AuditRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	record := &models.AuditRecord{
		EntryID:    payload.EntryID,
		RecordedAt: time.Now().UTC(),
		Payload:    string(data),
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistenceFailure, err)
	}
	return record, nil
}

// RecordsSince returns a lazy iterator over records with seq > cursor, in
// commit order. Pass cursor 0 to replay from the beginning; pass the last
// seen seq to resume an interrupted replay.
func (s *auditService) RecordsSince(cursor int64) *RecordIterator {
	return &RecordIterator{db: s.db, cursor: cursor}
}

// GetByEntryID retrieves the audit record for a committed entry.
func (s *auditService) GetByEntryID(entryID string) (*models.AuditRecord, error) {
	var record models.AuditRecord
	if err := s.db.Where("entry_id = ?", entryID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEntryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &record, nil
}

// RecordIterator streams audit records in commit order, fetching pages
// lazily. Usage follows the bufio.Scanner pattern:
//
//	it := audit.RecordsSince(0)
//	for it.Next() {
//	    rec := it.Record()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type RecordIterator struct {
	db     *gorm.DB
	cursor int64
	batch  []models.AuditRecord
	idx    int
	done   bool
	err    error
}

// Next advances to the next record, fetching a new page when the current one
// is exhausted. It returns false at the end of the trail or on error.
func (it *RecordIterator) Next() bool {
	if it.err != nil || it.done && it.idx >= len(it.batch) {
		return false
	}

	it.idx++
	if it.idx < len(it.batch) {
		it.cursor = it.batch[it.idx].Seq
		return true
	}
	if it.done {
		return false
	}

	var page []models.AuditRecord
	if err := it.db.Where("seq > ?", it.cursor).
		Order("seq ASC").
		Limit(auditIteratorPageSize).
		Find(&page).Error; err != nil {
		it.err = apperrors.Wrap(apperrors.ErrInternalServer, err)
		return false
	}
	if len(page) < auditIteratorPageSize {
		it.done = true
	}
	if len(page) == 0 {
		return false
	}

	it.batch = page
	it.idx = 0
	it.cursor = page[0].Seq
	return true
}

// Record returns the current record. Valid only after a true Next.
func (it *RecordIterator) Record() *models.AuditRecord {
	return &it.batch[it.idx]
}

// Err returns the first error encountered during iteration.
func (it *RecordIterator) Err() error {
	return it.err
}
