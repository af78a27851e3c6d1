package draft

import (
	"github.com/plumemail/plume/internal/blob"
	"github.com/plumemail/plume/internal/cache"
	"github.com/plumemail/plume/internal/models"
)

// StoreSaver persists drafts into the cache store and mirrors each revision
// to the blob store, one whole document per draft.
type StoreSaver struct {
	store *cache.Store
	blobs blob.Store
}

// NewStoreSaver wires a Saver over the cache and blob stores. blobs may be
// nil for sessions that should not touch disk.
func NewStoreSaver(store *cache.Store, blobs blob.Store) *StoreSaver {
	return &StoreSaver{store: store, blobs: blobs}
}

func (s *StoreSaver) SaveDraft(d models.Draft) error {
	s.store.PutDraft(d)
	if s.blobs == nil {
		return nil
	}
	return s.store.SaveDraftSnapshot(s.blobs, d.DraftID)
}

func (s *StoreSaver) DeleteDraft(draftID string) error {
	s.store.DeleteDraft(draftID)
	if s.blobs == nil {
		return nil
	}
	return s.store.DeleteDraftSnapshot(s.blobs, draftID)
}
