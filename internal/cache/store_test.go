package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumemail/plume/internal/models"
)

func testFolder(accountID, id string, role models.SpecialUse) *models.Folder {
	return &models.Folder{
		ID:         id,
		AccountID:  accountID,
		Name:       id,
		SpecialUse: role,
	}
}

func testMessage(accountID, folderID, id string, uid int64) *models.Message {
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(uid) * time.Minute)
	return &models.Message{
		ID:        id,
		AccountID: accountID,
		FolderID:  folderID,
		UID:       uid,
		Subject:   "subject " + id,
		SentAt:    &sentAt,
	}
}

func TestInsertMessage(t *testing.T) {
	t.Run("inserts and reads back a copy", func(t *testing.T) {
		s := NewStore()
		msg := testMessage("a1", "inbox", "m1", 1)
		require.NoError(t, s.InsertMessage(msg))

		// Mutating the caller's struct must not leak into the store.
		msg.Subject = "changed"

		got, err := s.MessageByID("m1")
		require.NoError(t, err)
		assert.Equal(t, "subject m1", got.Subject)
	})

	t.Run("rejects duplicate ids as identity collisions", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.InsertMessage(testMessage("a1", "inbox", "m1", 1)))

		err := s.InsertMessage(testMessage("a1", "inbox", "m1", 2))
		assert.ErrorIs(t, err, ErrIdentityCollision)

		// The first record wins.
		got, err := s.MessageByID("m1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.UID)
	})

	t.Run("deduplicates labels", func(t *testing.T) {
		s := NewStore()
		msg := testMessage("a1", "inbox", "m1", 1)
		msg.Labels = []string{"work", "work", "travel"}
		require.NoError(t, s.InsertMessage(msg))

		got, err := s.MessageByID("m1")
		require.NoError(t, err)
		assert.Equal(t, []string{"work", "travel"}, got.Labels)
	})
}

func TestMessagesInFolderOrdering(t *testing.T) {
	s := NewStore()

	older := testMessage("a1", "inbox", "older", 1)
	newer := testMessage("a1", "inbox", "newer", 2)
	undated := testMessage("a1", "inbox", "undated", 3)
	undated.SentAt = nil

	require.NoError(t, s.InsertMessage(undated))
	require.NoError(t, s.InsertMessage(older))
	require.NoError(t, s.InsertMessage(newer))

	got := s.MessagesInFolder("a1", "inbox")
	require.Len(t, got, 3)
	assert.Equal(t, "newer", got[0].ID)
	assert.Equal(t, "older", got[1].ID)
	// Messages without a timestamp sort last.
	assert.Equal(t, "undated", got[2].ID)
}

func TestMessagesInFolderTieBreak(t *testing.T) {
	s := NewStore()
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"b", "a"} {
		msg := testMessage("a1", "inbox", id, 7)
		msg.SentAt = &sentAt
		require.NoError(t, s.InsertMessage(msg))
	}

	got := s.MessagesInFolder("a1", "inbox")
	require.Len(t, got, 2)
	// Equal timestamp and UID fall back to id order, so the order is stable.
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMoveMessage(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.InsertMessage(testMessage("a1", "inbox", "m1", 1)))

	require.NoError(t, s.MoveMessage("m1", "archive"))

	assert.Empty(t, s.MessagesInFolder("a1", "inbox"))
	moved := s.MessagesInFolder("a1", "archive")
	require.Len(t, moved, 1)
	assert.Equal(t, "archive", moved[0].FolderID)

	assert.ErrorIs(t, s.MoveMessage("missing", "archive"), ErrMessageNotFound)
}

func TestDeleteMessage(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.InsertMessage(testMessage("a1", "inbox", "m1", 1)))
	s.SetPending("m1", PendingRead)

	require.NoError(t, s.DeleteMessage("m1"))

	assert.False(t, s.HasMessage("m1"))
	assert.False(t, s.IsPending("m1", PendingRead))
	assert.ErrorIs(t, s.DeleteMessage("m1"), ErrMessageNotFound)
}

func TestRekeyMessage(t *testing.T) {
	t.Run("renames a local record in place", func(t *testing.T) {
		s := NewStore()
		local := testMessage("a1", "sent", "local-token", 0)
		local.MessageIDHeader = "<abc@plume.local>"
		require.NoError(t, s.InsertMessage(local))

		require.NoError(t, s.RekeyMessage("local-token", "canonical", "sent", 99))

		assert.False(t, s.HasMessage("local-token"))
		got, err := s.MessageByID("canonical")
		require.NoError(t, err)
		assert.Equal(t, int64(99), got.UID)
		assert.True(t, got.Synced())

		inFolder := s.MessagesInFolder("a1", "sent")
		require.Len(t, inFolder, 1)
		assert.Equal(t, "canonical", inFolder[0].ID)
	})

	t.Run("refuses to overwrite an existing id", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.InsertMessage(testMessage("a1", "sent", "local-token", 0)))
		require.NoError(t, s.InsertMessage(testMessage("a1", "sent", "canonical", 99)))

		err := s.RekeyMessage("local-token", "canonical", "sent", 99)
		assert.ErrorIs(t, err, ErrIdentityCollision)
	})
}

func TestFindUnsyncedByHeader(t *testing.T) {
	s := NewStore()

	local := testMessage("a1", "sent", "local-token", 0)
	local.MessageIDHeader = "<abc@plume.local>"
	require.NoError(t, s.InsertMessage(local))

	synced := testMessage("a1", "sent", "synced", 5)
	synced.MessageIDHeader = "<def@plume.local>"
	require.NoError(t, s.InsertMessage(synced))

	id, ok := s.FindUnsyncedByHeader("a1", "sent", "<abc@plume.local>")
	assert.True(t, ok)
	assert.Equal(t, "local-token", id)

	// A synced record never matches, even with the right header.
	_, ok = s.FindUnsyncedByHeader("a1", "sent", "<def@plume.local>")
	assert.False(t, ok)

	_, ok = s.FindUnsyncedByHeader("a1", "inbox", "<abc@plume.local>")
	assert.False(t, ok)
}

func TestRecomputeCounts(t *testing.T) {
	s := NewStore()
	s.UpsertFolder(testFolder("a1", "inbox", models.SpecialInbox))

	read := testMessage("a1", "inbox", "m1", 1)
	read.IsRead = true
	starred := testMessage("a1", "inbox", "m2", 2)
	starred.IsStarred = true
	withAttachment := testMessage("a1", "inbox", "m3", 3)
	withAttachment.HasAttachments = true

	require.NoError(t, s.InsertMessage(read))
	require.NoError(t, s.InsertMessage(starred))
	require.NoError(t, s.InsertMessage(withAttachment))

	f, err := s.RecomputeCounts("a1", "inbox")
	require.NoError(t, err)
	assert.Equal(t, 3, f.TotalCount)
	assert.Equal(t, 2, f.UnreadCount)
	assert.Equal(t, 1, f.StarredCount)
	assert.Equal(t, 1, f.AttachmentCount)

	// Recompute always rebuilds from scratch.
	require.NoError(t, s.DeleteMessage("m2"))
	f, err = s.RecomputeCounts("a1", "inbox")
	require.NoError(t, err)
	assert.Equal(t, 2, f.TotalCount)
	assert.Equal(t, 0, f.StarredCount)

	_, err = s.RecomputeCounts("a1", "nope")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestUpsertFolderPreservesCounts(t *testing.T) {
	s := NewStore()
	s.UpsertFolder(testFolder("a1", "inbox", models.SpecialInbox))
	require.NoError(t, s.InsertMessage(testMessage("a1", "inbox", "m1", 1)))
	_, err := s.RecomputeCounts("a1", "inbox")
	require.NoError(t, err)

	renamed := testFolder("a1", "inbox", models.SpecialInbox)
	renamed.Name = "INBOX"
	s.UpsertFolder(renamed)

	f, err := s.FolderByID("a1", "inbox")
	require.NoError(t, err)
	assert.Equal(t, "INBOX", f.Name)
	assert.Equal(t, 1, f.TotalCount)
}

func TestFolderList(t *testing.T) {
	s := NewStore()
	s.UpsertFolder(testFolder("a1", "zebra", models.SpecialNone))
	s.UpsertFolder(testFolder("a1", "trash", models.SpecialTrash))
	s.UpsertFolder(testFolder("a1", "inbox", models.SpecialInbox))
	s.UpsertFolder(testFolder("a1", "alpha", models.SpecialNone))
	s.UpsertFolder(testFolder("a2", "inbox", models.SpecialInbox))

	got := s.FolderList("a1")
	require.Len(t, got, 4)
	assert.Equal(t, "inbox", got[0].ID)
	assert.Equal(t, "trash", got[1].ID)
	assert.Equal(t, "alpha", got[2].ID)
	assert.Equal(t, "zebra", got[3].ID)
}

func TestFolderBySpecialUse(t *testing.T) {
	s := NewStore()
	s.UpsertFolder(testFolder("a1", "trash-b", models.SpecialTrash))
	s.UpsertFolder(testFolder("a1", "trash-a", models.SpecialTrash))

	f, ok := s.FolderBySpecialUse("a1", models.SpecialTrash)
	require.True(t, ok)
	// Duplicated roles resolve deterministically.
	assert.Equal(t, "trash-a", f.ID)

	_, ok = s.FolderBySpecialUse("a1", models.SpecialArchive)
	assert.False(t, ok)
}

func TestRemoveFolder(t *testing.T) {
	s := NewStore()
	s.UpsertFolder(testFolder("a1", "inbox", models.SpecialInbox))
	s.UpsertFolder(testFolder("a1", "project", models.SpecialNone))
	require.NoError(t, s.InsertMessage(testMessage("a1", "project", "m1", 1)))

	assert.ErrorIs(t, s.RemoveFolder("a1", "inbox"), ErrFolderProtected)
	assert.Error(t, s.RemoveFolder("a1", "project"))

	require.NoError(t, s.DeleteMessage("m1"))
	require.NoError(t, s.RemoveFolder("a1", "project"))
	_, err := s.FolderByID("a1", "project")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}
