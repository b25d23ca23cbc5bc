package services

import (
	"gorm.io/gorm"

	apperrors "coreledger/internal/errors"
	"coreledger/internal/models"
)

// accountState captures one account's metadata as read at the start of a
// posting: the row itself plus whether it currently aggregates children.
type accountState struct {
	account     models.Account
	hasChildren bool
}

// snapshot is a consistent read of account metadata keyed by account id.
// It is closed over parents: every ancestor of a loaded account is loaded too.
type snapshot map[string]accountState

// loadSnapshot reads the given accounts and their full ancestor chains.
// Ids that do not exist are simply absent from the result; the validator
// reports them.
func loadSnapshot(db *gorm.DB, ids []string) (snapshot, error) {
	snap := make(snapshot)

	pending := dedupSorted(ids)
	for len(pending) > 0 {
		var accounts []models.Account
		if err := db.Where("id IN ?", pending).Find(&accounts).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		var next []string
		for _, a := range accounts {
			snap[a.ID] = accountState{account: a}
			if a.ParentID != nil {
				if _, loaded := snap[*a.ParentID]; !loaded {
					next = append(next, *a.ParentID)
				}
			}
		}
		pending = dedupSorted(next)
	}

	if len(snap) == 0 {
		return snap, nil
	}

	allIDs := snap.ids()
	var counts []struct {
		ParentID string
		N        int64
	}
	if err := db.Model(&models.Account{}).
		Select("parent_id, COUNT(*) AS n").
		Where("parent_id IN ?", allIDs).
		Group("parent_id").
		Scan(&counts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, c := range counts {
		if state, ok := snap[c.ParentID]; ok && c.N > 0 {
			state.hasChildren = true
			snap[c.ParentID] = state
		}
	}

	return snap, nil
}

// ids returns every account id in the snapshot, ascending.
func (s snapshot) ids() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return dedupSorted(out)
}

// ancestors walks the parent chain upward from the given account, guarding
// against corrupt cycles with a visited set.
func (s snapshot) ancestors(id string) []string {
	var chain []string
	visited := map[string]bool{id: true}

	state, ok := s[id]
	if !ok {
		return nil
	}
	cur := state.account.ParentID
	for cur != nil && !visited[*cur] {
		visited[*cur] = true
		chain = append(chain, *cur)
		next, ok := s[*cur]
		if !ok {
			break
		}
		cur = next.account.ParentID
	}
	return chain
}
