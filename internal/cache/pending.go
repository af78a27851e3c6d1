package cache

import (
	"fmt"

	"github.com/plumemail/plume/internal/models"
)

// Pending mutation tags mark a (message, flag) pair as having an optimistic
// local write whose remote request is still in flight. Reconciliation must
// not overwrite a tagged flag from remote state.
//
// Each tag carries a generation. A newer mutation on the same (message, flag)
// takes over the tag with a fresh generation; the superseded mutation's
// clear and rollback then become no-ops, which is what gives last-writer-wins
// semantics for overlapping mutations on the same flag.

// PriorValue captures the pre-mutation value of a single flag. Bool is used
// for read/starred; FolderID for moves.
type PriorValue struct {
	Bool     bool
	FolderID string
}

// SetPending tags (messageID, flag) and returns the owning generation.
func (s *Store) SetPending(messageID string, flag PendingFlag) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genSeq++
	s.pending[pendingKey{messageID, flag}] = s.genSeq
	return s.genSeq
}

// UpdatePending applies a single-flag change and tags it pending under one
// lock acquisition. Reconciliation checks the tag before overwriting a flag
// from remote state, so the tag must never lag behind the optimistic value.
func (s *Store) UpdatePending(messageID string, flag PendingFlag, apply func(*models.Message)) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	apply(msg)
	s.genSeq++
	s.pending[pendingKey{messageID, flag}] = s.genSeq
	return s.genSeq, nil
}

// MovePending relocates a message and tags its folder flag pending, again
// under a single lock acquisition.
func (s *Store) MovePending(messageID, targetFolderID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	s.moveLocked(msg, targetFolderID)
	s.genSeq++
	s.pending[pendingKey{messageID, PendingFolder}] = s.genSeq
	return s.genSeq, nil
}

// IsPending reports whether (messageID, flag) carries a pending tag.
func (s *Store) IsPending(messageID string, flag PendingFlag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pending[pendingKey{messageID, flag}]
	return ok
}

// ClearPending removes the tag if gen still owns it. It returns true when the
// caller was the owner; false means a newer mutation has taken over.
func (s *Store) ClearPending(messageID string, flag PendingFlag, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingKey{messageID, flag}
	owner, ok := s.pending[key]
	if !ok || owner != gen {
		return false
	}
	delete(s.pending, key)
	return true
}

// RollbackPending restores exactly the tagged flag to its prior value and
// clears the tag, provided gen still owns it. Flags other than the tagged
// one are never touched, so unrelated concurrent mutations are unaffected.
func (s *Store) RollbackPending(messageID string, flag PendingFlag, gen uint64, prior PriorValue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingKey{messageID, flag}
	owner, ok := s.pending[key]
	if !ok || owner != gen {
		return false
	}
	delete(s.pending, key)

	msg, ok := s.messages[messageID]
	if !ok {
		return false
	}

	switch flag {
	case PendingRead:
		msg.IsRead = prior.Bool
	case PendingStarred:
		msg.IsStarred = prior.Bool
	case PendingFolder:
		s.moveLocked(msg, prior.FolderID)
	}
	return true
}

// moveLocked reassigns a message's folder and fixes the (folder, id) index.
// Caller must hold s.mu.
func (s *Store) moveLocked(msg *models.Message, targetFolderID string) {
	if msg.FolderID == targetFolderID {
		return
	}
	oldKey := folderKey{msg.AccountID, msg.FolderID}
	newKey := folderKey{msg.AccountID, targetFolderID}
	delete(s.byFolder[oldKey], msg.ID)
	if _, ok := s.byFolder[newKey]; !ok {
		s.byFolder[newKey] = make(map[string]struct{})
	}
	s.byFolder[newKey][msg.ID] = struct{}{}
	msg.FolderID = targetFolderID
}
