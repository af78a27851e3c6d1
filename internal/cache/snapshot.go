package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/plumemail/plume/internal/blob"
	"github.com/plumemail/plume/internal/models"
)

// Snapshots persist the cache through the blob store, one whole document per
// folder and one per draft. The blob layer has no partial updates, so a
// snapshot always replaces the previous revision of its document.

const (
	mailKeyPrefix  = "mail/"
	draftKeyPrefix = "draft/"
)

type folderSnapshot struct {
	Folder   models.Folder    `json:"folder"`
	Messages []models.Message `json:"messages"`
}

func folderSnapshotKey(accountID, folderID string) string {
	return mailKeyPrefix + url.PathEscape(accountID) + "/" + url.PathEscape(folderID)
}

// SaveFolderSnapshot writes the folder and its messages as one document.
func (s *Store) SaveFolderSnapshot(bs blob.Store, accountID, folderID string) error {
	f, err := s.FolderByID(accountID, folderID)
	if err != nil {
		return err
	}

	snap := folderSnapshot{
		Folder:   f,
		Messages: s.MessagesInFolder(accountID, folderID),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode folder snapshot: %w", err)
	}
	if err := bs.Write(folderSnapshotKey(accountID, folderID), data); err != nil {
		return fmt.Errorf("failed to persist folder snapshot: %w", err)
	}
	return nil
}

// SaveDraftSnapshot writes one draft as its own document.
func (s *Store) SaveDraftSnapshot(bs blob.Store, draftID string) error {
	d, err := s.DraftByID(draftID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft snapshot: %w", err)
	}
	if err := bs.Write(draftKeyPrefix+url.PathEscape(draftID), data); err != nil {
		return fmt.Errorf("failed to persist draft snapshot: %w", err)
	}
	return nil
}

// DeleteDraftSnapshot removes a draft's persisted document.
func (s *Store) DeleteDraftSnapshot(bs blob.Store, draftID string) error {
	return bs.Delete(draftKeyPrefix + url.PathEscape(draftID))
}

// LoadSnapshots rehydrates the store from the blob store at session start.
// A corrupt document is skipped and logged; it will be overwritten by the
// next snapshot of its folder or draft.
func (s *Store) LoadSnapshots(bs blob.Store) error {
	mailKeys, err := bs.Keys(mailKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list folder snapshots: %w", err)
	}

	for _, key := range mailKeys {
		data, err := bs.Read(key)
		if err != nil {
			return fmt.Errorf("failed to read snapshot %q: %w", key, err)
		}

		var snap folderSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			log.Printf("Warning: Skipping corrupt folder snapshot %q: %v", key, err)
			continue
		}

		s.UpsertFolder(&snap.Folder)
		for i := range snap.Messages {
			if err := s.InsertMessage(&snap.Messages[i]); err != nil {
				log.Printf("Warning: Skipping message %s from snapshot %q: %v", snap.Messages[i].ID, key, err)
			}
		}
		if _, err := s.RecomputeCounts(snap.Folder.AccountID, snap.Folder.ID); err != nil {
			return err
		}
	}

	draftKeys, err := bs.Keys(draftKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list draft snapshots: %w", err)
	}

	for _, key := range draftKeys {
		data, err := bs.Read(key)
		if err != nil {
			return fmt.Errorf("failed to read snapshot %q: %w", key, err)
		}

		var d models.Draft
		if err := json.Unmarshal(data, &d); err != nil || d.DraftID == "" {
			log.Printf("Warning: Skipping corrupt draft snapshot %q: %v", key, err)
			continue
		}
		s.PutDraft(d)
	}

	return nil
}
