package services

import (
	"sort"
	"sync"
	"time"

	apperrors "coreledger/internal/errors"
)

// LockTable grants per-account update rights. Locks are always acquired in
// ascending account-id order, so two postings with overlapping account sets
// cannot deadlock. Waiting is bounded; on timeout every lock already held is
// released and the caller gets ErrLedgerBusy.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]chan struct{})}
}

// lockFor returns the lock channel for an account, creating it on first use.
func (t *LockTable) lockFor(id string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[id] = ch
	}
	return ch
}

// acquire takes update rights for every id, deduplicated and in ascending
// order, within the given timeout. It returns a release function that must
// be called exactly once, on commit or abort.
func (t *LockTable) acquire(ids []string, timeout time.Duration) (func(), error) {
	sorted := dedupSorted(ids)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(sorted))
	for _, id := range sorted {
		ch := t.lockFor(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			for _, h := range held {
				<-h
			}
			return nil, apperrors.ErrLedgerBusy
		}
	}

	release := func() {
		for _, h := range held {
			<-h
		}
	}
	return release, nil
}

// dedupSorted returns the unique ids in ascending order.
func dedupSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
