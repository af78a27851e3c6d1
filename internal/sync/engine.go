// Package sync merges remote fetch batches into the local cache.
package sync

import (
	"context"
	"fmt"
	"log"
	gosync "sync"

	"github.com/plumemail/plume/internal/blob"
	"github.com/plumemail/plume/internal/cache"
	"github.com/plumemail/plume/internal/folder"
	"github.com/plumemail/plume/internal/identity"
	"github.com/plumemail/plume/internal/models"
	"github.com/plumemail/plume/internal/transport"
)

// Result summarizes one reconciliation batch.
type Result struct {
	Folder     models.Folder `json:"folder"`
	Inserted   int           `json:"inserted"`
	Updated    int           `json:"updated"`
	Rekeyed    int           `json:"rekeyed"`
	Skipped    int           `json:"skipped"`
	Collisions int           `json:"collisions"`
}

type folderLockKey struct {
	accountID string
	folderID  string
}

// Engine reconciles remote batches into the cache store. Batches for the
// same folder are serialized; distinct folders reconcile concurrently.
type Engine struct {
	store *cache.Store
	blobs blob.Store

	mu    gosync.Mutex
	locks map[folderLockKey]*gosync.Mutex
}

// NewEngine creates an engine over the given store. blobs may be nil, in
// which case no snapshots are written after a merge.
func NewEngine(store *cache.Store, blobs blob.Store) *Engine {
	return &Engine{
		store: store,
		blobs: blobs,
		locks: make(map[folderLockKey]*gosync.Mutex),
	}
}

func (e *Engine) folderLock(accountID, folderID string) *gosync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := folderLockKey{accountID, folderID}
	lock, ok := e.locks[key]
	if !ok {
		lock = &gosync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}

// ReconcileFolder merges a batch of remote items for one (account, folder)
// into the cache. The merge is atomic with respect to other batches for the
// same folder. Malformed items are skipped and logged; they never fail the
// batch. Optimistic local writes protected by pending tags are never
// overwritten by remote state.
func (e *Engine) ReconcileFolder(accountID string, info transport.FolderInfo, items []transport.Item) (Result, error) {
	f := folder.Normalize(accountID, info)

	lock := e.folderLock(accountID, f.ID)
	lock.Lock()
	defer lock.Unlock()

	e.store.UpsertFolder(f)

	result := Result{}
	for i := range items {
		item := &items[i]

		if item.UID <= 0 || item.Date.IsZero() {
			log.Printf("Warning: Skipping malformed remote item in folder %s (uid=%d)", f.Name, item.UID)
			result.Skipped++
			continue
		}

		id := identity.MessageID(accountID, f.ID, item.UID)
		switch {
		case e.store.HasMessage(id):
			if e.updateExisting(accountID, f.ID, id, item, &result) {
				result.Updated++
			}
		default:
			e.insertOrRekey(accountID, f.ID, id, item, &result)
		}
	}

	updated, err := e.store.RecomputeCounts(accountID, f.ID)
	if err != nil {
		return result, err
	}
	result.Folder = updated

	if e.blobs != nil {
		if err := e.store.SaveFolderSnapshot(e.blobs, accountID, f.ID); err != nil {
			// The cache stays authoritative for this session; the next
			// successful snapshot replaces the stale document.
			log.Printf("Warning: Failed to snapshot folder %s: %v", f.ID, err)
		}
	}

	return result, nil
}

// updateExisting merges a remote item into the cached record with the same
// derived id. Content from remote wins; flags win only when no pending
// mutation protects them. Returns false when the item was dropped.
func (e *Engine) updateExisting(accountID, folderID, id string, item *transport.Item, result *Result) bool {
	existing, err := e.store.MessageByID(id)
	if err != nil {
		return false
	}

	if existing.UID != item.UID || existing.AccountID != accountID {
		log.Printf("ERROR: Identity collision: remote item uid=%d resolves to cached id %s (uid=%d); dropping remote item",
			item.UID, id, existing.UID)
		result.Collisions++
		return false
	}
	if existing.FolderID != folderID && !e.store.IsPending(id, cache.PendingFolder) {
		log.Printf("ERROR: Identity collision: remote item in folder %s resolves to cached id %s in folder %s; dropping remote item",
			folderID, id, existing.FolderID)
		result.Collisions++
		return false
	}

	protectRead := e.store.IsPending(id, cache.PendingRead)
	protectStarred := e.store.IsPending(id, cache.PendingStarred)

	return e.store.UpdateMessage(id, func(m *models.Message) {
		applyContent(m, item)
		if !protectRead {
			m.IsRead = item.Read
		}
		if !protectStarred {
			m.IsStarred = item.Starred
		}
	}) == nil
}

// insertOrRekey inserts a new message, unless an unsynced local record with
// the same Message-ID header occupies this folder, in which case the record
// is rekeyed to its canonical id instead of inserted twice.
func (e *Engine) insertOrRekey(accountID, folderID, id string, item *transport.Item, result *Result) {
	if item.MessageID != "" {
		if localID, ok := e.store.FindUnsyncedByHeader(accountID, folderID, item.MessageID); ok {
			if err := e.store.RekeyMessage(localID, id, folderID, item.UID); err != nil {
				log.Printf("Warning: Failed to rekey local message %s to %s: %v", localID, id, err)
				result.Skipped++
				return
			}
			_ = e.store.UpdateMessage(id, func(m *models.Message) {
				applyContent(m, item)
				m.IsRead = item.Read
				m.IsStarred = item.Starred
			})
			result.Rekeyed++
			return
		}
	}

	msg := buildMessage(accountID, folderID, id, item)
	if err := e.store.InsertMessage(msg); err != nil {
		log.Printf("ERROR: Dropping remote item uid=%d: %v", item.UID, err)
		result.Collisions++
		return
	}
	result.Inserted++
}

// applyContent copies the content fields (not the state flags) of a remote
// item onto a cached message.
func applyContent(m *models.Message, item *transport.Item) {
	m.MessageIDHeader = item.MessageID
	m.FromAddress = item.From
	m.ToAddresses = item.To
	m.CCAddresses = item.CC
	m.Subject = item.Subject
	date := item.Date
	m.SentAt = &date
	m.BodyText = item.BodyText
	m.UnsafeBodyHTML = item.BodyHTML
	m.Preview = models.Preview(item.BodyText)
	m.HasAttachments = item.HasAttachments
	m.Attachments = convertAttachments(item.Attachments)
}

func buildMessage(accountID, folderID, id string, item *transport.Item) *models.Message {
	msg := &models.Message{
		ID:        id,
		AccountID: accountID,
		FolderID:  folderID,
		UID:       item.UID,
		IsRead:    item.Read,
		IsStarred: item.Starred,
	}
	applyContent(msg, item)
	return msg
}

func convertAttachments(atts []transport.ItemAttachment) []models.Attachment {
	if len(atts) == 0 {
		return nil
	}
	out := make([]models.Attachment, len(atts))
	for i, a := range atts {
		out[i] = models.Attachment{
			Filename:  a.Filename,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
			IsInline:  a.IsInline,
			ContentID: a.ContentID,
		}
	}
	return out
}

// SyncFolder fetches one folder from the remote mailbox and reconciles it.
// A failed fetch leaves the cache untouched and is reported to the caller;
// retry policy belongs to the transport layer.
func (e *Engine) SyncFolder(ctx context.Context, accountID string, mb transport.Mailbox, folderName string, limit uint32) (Result, error) {
	info, err := e.lookupFolderInfo(ctx, mb, folderName)
	if err != nil {
		return Result{}, err
	}

	items, err := mb.FetchMessages(ctx, folderName, limit)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch %s: %w", folderName, err)
	}

	return e.ReconcileFolder(accountID, info, items)
}

// SyncAccount lists remote folders and reconciles each. A folder that fails
// to fetch is logged and skipped; the other folders still reconcile.
func (e *Engine) SyncAccount(ctx context.Context, accountID string, mb transport.Mailbox, limit uint32) ([]Result, error) {
	infos, err := mb.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	var results []Result
	for _, info := range infos {
		items, err := mb.FetchMessages(ctx, info.Name, limit)
		if err != nil {
			log.Printf("Warning: Failed to fetch folder %s: %v", info.Name, err)
			continue
		}

		result, err := e.ReconcileFolder(accountID, info, items)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (e *Engine) lookupFolderInfo(ctx context.Context, mb transport.Mailbox, folderName string) (transport.FolderInfo, error) {
	infos, err := mb.ListFolders(ctx)
	if err != nil {
		return transport.FolderInfo{}, fmt.Errorf("failed to list folders: %w", err)
	}
	for _, info := range infos {
		if info.Name == folderName {
			return info, nil
		}
	}
	// The server no longer reports the folder; reconcile under its bare name
	// so cached state stays addressable.
	return transport.FolderInfo{Name: folderName}, nil
}
