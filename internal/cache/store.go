// Package cache holds the local, mutable view of the remote mailbox. It is
// the single source of truth the UI reads: reconciliation, mutation, and
// draft persistence all go through this store.
package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/plumemail/plume/internal/models"
)

var (
	// ErrMessageNotFound is returned when a requested message is not cached.
	ErrMessageNotFound = errors.New("message not found")
	// ErrFolderNotFound is returned when a requested folder is not cached.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrDraftNotFound is returned when a requested draft is not cached.
	ErrDraftNotFound = errors.New("draft not found")
	// ErrIdentityCollision indicates two distinct remote items resolved to
	// the same derived id. It is a data-integrity fault, not a user error.
	ErrIdentityCollision = errors.New("message identity collision")
	// ErrFolderProtected is returned when removing a special-use folder.
	ErrFolderProtected = errors.New("folder is protected")
)

// PendingFlag names a message attribute that can carry a pending mutation.
type PendingFlag string

const (
	PendingRead    PendingFlag = "read"
	PendingStarred PendingFlag = "starred"
	PendingFolder  PendingFlag = "folder"
)

type folderKey struct {
	accountID string
	folderID  string
}

type pendingKey struct {
	messageID string
	flag      PendingFlag
}

// Store is the owned cache of messages, folders, and drafts for a session.
// Each exported method is atomic; cross-call consistency between interleaved
// sync and mutation paths is enforced by the pending-mutation tags.
type Store struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	byFolder map[folderKey]map[string]struct{}
	folders  map[folderKey]*models.Folder
	drafts   map[string]*models.Draft
	pending  map[pendingKey]uint64
	genSeq   uint64
}

// NewStore returns an empty cache store.
func NewStore() *Store {
	return &Store{
		messages: make(map[string]*models.Message),
		byFolder: make(map[folderKey]map[string]struct{}),
		folders:  make(map[folderKey]*models.Folder),
		drafts:   make(map[string]*models.Draft),
		pending:  make(map[pendingKey]uint64),
	}
}

// UpsertFolder inserts or refreshes a folder's identity and display metadata.
// Existing counts are preserved; they only change through RecomputeCounts.
func (s *Store) UpsertFolder(f *models.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := folderKey{f.AccountID, f.ID}
	existing, ok := s.folders[key]
	if !ok {
		clone := *f
		s.folders[key] = &clone
		if _, ok := s.byFolder[key]; !ok {
			s.byFolder[key] = make(map[string]struct{})
		}
		return
	}

	existing.Name = f.Name
	existing.Delimiter = f.Delimiter
	existing.Icon = f.Icon
	existing.SpecialUse = f.SpecialUse
}

// FolderByID returns a copy of the folder, or ErrFolderNotFound.
func (s *Store) FolderByID(accountID, folderID string) (models.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[folderKey{accountID, folderID}]
	if !ok {
		return models.Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}
	return *f, nil
}

// FolderBySpecialUse returns the first folder with the given role.
func (s *Store) FolderBySpecialUse(accountID string, role models.SpecialUse) (models.Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match *models.Folder
	for key, f := range s.folders {
		if key.accountID != accountID || f.SpecialUse != role {
			continue
		}
		// Deterministic pick when a role is duplicated.
		if match == nil || f.ID < match.ID {
			match = f
		}
	}
	if match == nil {
		return models.Folder{}, false
	}
	return *match, true
}

// RemoveFolder drops an empty, non-special folder from the cache. Folders
// that still hold messages or have a recognized role are never removed.
func (s *Store) RemoveFolder(accountID, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := folderKey{accountID, folderID}
	f, ok := s.folders[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}
	if f.SpecialUse != models.SpecialNone {
		return fmt.Errorf("%w: %s", ErrFolderProtected, folderID)
	}
	if len(s.byFolder[key]) > 0 {
		return fmt.Errorf("folder %s still holds %d messages", folderID, len(s.byFolder[key]))
	}

	delete(s.folders, key)
	delete(s.byFolder, key)
	return nil
}

// FolderList returns all folders for the account, special-use roles first,
// then the rest alphabetically.
func (s *Store) FolderList(accountID string) []models.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders := make([]models.Folder, 0, len(s.folders))
	for key, f := range s.folders {
		if key.accountID == accountID {
			folders = append(folders, *f)
		}
	}

	rolePriority := map[models.SpecialUse]int{
		models.SpecialInbox:   1,
		models.SpecialSent:    2,
		models.SpecialDrafts:  3,
		models.SpecialSpam:    4,
		models.SpecialTrash:   5,
		models.SpecialArchive: 6,
		models.SpecialNone:    7,
	}

	sort.Slice(folders, func(i, j int) bool {
		pi, pj := rolePriority[folders[i].SpecialUse], rolePriority[folders[j].SpecialUse]
		if pi != pj {
			return pi < pj
		}
		return folders[i].Name < folders[j].Name
	})

	return folders
}

// InsertMessage adds a new message. Inserting an id that already exists is an
// identity collision: the existing record wins and the insert is rejected.
func (s *Store) InsertMessage(msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.ID]; ok {
		return fmt.Errorf("%w: %s", ErrIdentityCollision, msg.ID)
	}

	clone := *msg
	clone.Labels = uniqueLabels(clone.Labels)
	s.messages[clone.ID] = &clone

	key := folderKey{clone.AccountID, clone.FolderID}
	if _, ok := s.byFolder[key]; !ok {
		s.byFolder[key] = make(map[string]struct{})
	}
	s.byFolder[key][clone.ID] = struct{}{}
	return nil
}

// MessageByID returns a copy of the message, or ErrMessageNotFound.
func (s *Store) MessageByID(id string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return models.Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	return *msg, nil
}

// HasMessage reports whether an id is cached.
func (s *Store) HasMessage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.messages[id]
	return ok
}

// UpdateMessage applies fn to the message under the store lock. All field
// mutation outside the move/delete paths goes through here.
func (s *Store) UpdateMessage(id string, fn func(*models.Message)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	fn(msg)
	msg.Labels = uniqueLabels(msg.Labels)
	return nil
}

// MessagesInFolder returns the folder's messages ordered by timestamp
// descending. Ties break by UID then id so the order is stable.
func (s *Store) MessagesInFolder(accountID, folderID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byFolder[folderKey{accountID, folderID}]
	messages := make([]models.Message, 0, len(ids))
	for id := range ids {
		messages = append(messages, *s.messages[id])
	}

	sort.Slice(messages, func(i, j int) bool {
		ti, tj := messages[i].SentAt, messages[j].SentAt
		switch {
		case ti == nil && tj == nil:
			// fall through to tie-break
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.After(*tj)
		}
		if messages[i].UID != messages[j].UID {
			return messages[i].UID > messages[j].UID
		}
		return messages[i].ID < messages[j].ID
	})

	return messages
}

// FindUnsyncedByHeader looks for a locally originated (unsynced) message in
// the folder with the given Message-ID header. Reconciliation uses it to
// rekey a local send to its canonical id instead of inserting a duplicate.
func (s *Store) FindUnsyncedByHeader(accountID, folderID, header string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byFolder[folderKey{accountID, folderID}] {
		msg := s.messages[id]
		if msg.UID == 0 && msg.MessageIDHeader == header {
			return id, true
		}
	}
	return "", false
}

// MoveMessage reassigns a message to another folder in the same account.
// The operation touches only the affected index entries.
func (s *Store) MoveMessage(id, targetFolderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	s.moveLocked(msg, targetFolderID)
	return nil
}

// DeleteMessage permanently removes a message and its pending tags.
func (s *Store) DeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}

	delete(s.byFolder[folderKey{msg.AccountID, msg.FolderID}], id)
	delete(s.messages, id)
	for _, flag := range []PendingFlag{PendingRead, PendingStarred, PendingFolder} {
		delete(s.pending, pendingKey{id, flag})
	}
	return nil
}

// RekeyMessage renames a locally originated record to its canonical id once
// the remote confirms placement. It is a rename, never a duplicate insert.
func (s *Store) RekeyMessage(oldID, newID, folderID string, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[oldID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, oldID)
	}
	if _, ok := s.messages[newID]; ok {
		return fmt.Errorf("%w: %s", ErrIdentityCollision, newID)
	}

	delete(s.byFolder[folderKey{msg.AccountID, msg.FolderID}], oldID)
	delete(s.messages, oldID)

	msg.ID = newID
	msg.FolderID = folderID
	msg.UID = uid
	s.messages[newID] = msg

	key := folderKey{msg.AccountID, folderID}
	if _, ok := s.byFolder[key]; !ok {
		s.byFolder[key] = make(map[string]struct{})
	}
	s.byFolder[key][newID] = struct{}{}
	return nil
}

// RecomputeCounts rebuilds the folder's counters from the authoritative
// message set and returns the updated folder. Counters are never adjusted
// incrementally; this is the only way they change.
func (s *Store) RecomputeCounts(accountID, folderID string) (models.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := folderKey{accountID, folderID}
	f, ok := s.folders[key]
	if !ok {
		return models.Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, folderID)
	}

	var unread, total, starred, withAttachments int
	for id := range s.byFolder[key] {
		msg := s.messages[id]
		total++
		if !msg.IsRead {
			unread++
		}
		if msg.IsStarred {
			starred++
		}
		if msg.HasAttachments {
			withAttachments++
		}
	}

	f.UnreadCount = unread
	f.TotalCount = total
	f.StarredCount = starred
	f.AttachmentCount = withAttachments
	return *f, nil
}

func uniqueLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
