package cache

import (
	"fmt"
	"sort"

	"github.com/plumemail/plume/internal/models"
)

// Drafts live in their own partition of the store. Draft ids and message ids
// are disjoint identity spaces and never merge; sending a draft deletes the
// draft record, and the sent copy arrives later as an ordinary synced message.

// PutDraft inserts or replaces the draft occupying the DraftID slot.
func (s *Store) PutDraft(d models.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := d
	s.drafts[d.DraftID] = &clone
}

// DraftByID returns a copy of the draft, or ErrDraftNotFound.
func (s *Store) DraftByID(draftID string) (models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[draftID]
	if !ok {
		return models.Draft{}, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	return *d, nil
}

// DeleteDraft removes the draft record. Deleting a missing draft is a no-op
// so discard-after-send does not error.
func (s *Store) DeleteDraft(draftID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, draftID)
}

// DraftList returns the account's drafts, most recently saved first.
func (s *Store) DraftList(accountID string) []models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts := make([]models.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		if d.AccountID == accountID {
			drafts = append(drafts, *d)
		}
	}

	sort.Slice(drafts, func(i, j int) bool {
		if !drafts[i].LastSaved.Equal(drafts[j].LastSaved) {
			return drafts[i].LastSaved.After(drafts[j].LastSaved)
		}
		return drafts[i].DraftID < drafts[j].DraftID
	})

	return drafts
}
