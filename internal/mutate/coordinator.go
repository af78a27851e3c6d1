// Package mutate applies optimistic bulk state changes to cached messages
// and reconciles them with the remote mailbox.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/plumemail/plume/internal/blob"
	"github.com/plumemail/plume/internal/cache"
	"github.com/plumemail/plume/internal/models"
	"github.com/plumemail/plume/internal/transport"
)

// ErrRejected is returned when the remote refused one or more flag changes.
// The affected flags have already been rolled back when the caller sees it.
var ErrRejected = errors.New("mutation rejected by remote")

// Action is a bulk state change the UI can request.
type Action string

const (
	ActionMarkRead   Action = "mark_read"
	ActionMarkUnread Action = "mark_unread"
	ActionStar       Action = "star"
	ActionUnstar     Action = "unstar"
	ActionMove       Action = "move"
	// ActionDelete moves to the canonical trash folder. Permanent deletion
	// is a separate, non-bulk operation.
	ActionDelete Action = "delete"
)

// Request is a bulk mutation over a set of message ids.
type Request struct {
	AccountID    string   `json:"account_id"`
	IDs          []string `json:"ids"`
	Action       Action   `json:"action"`
	TargetFolder string   `json:"target_folder,omitempty"`
}

// Result reports what happened to each id in a request.
type Result struct {
	Applied    []string `json:"applied"`
	RolledBack []string `json:"rolled_back"`
	Missing    []string `json:"missing"`
}

// Coordinator owns the optimistic write path: apply to cache, tag pending,
// issue the remote request, then clear or roll back.
type Coordinator struct {
	store *cache.Store
	blobs blob.Store
}

// NewCoordinator creates a coordinator. blobs may be nil to skip snapshots.
func NewCoordinator(store *cache.Store, blobs blob.Store) *Coordinator {
	return &Coordinator{store: store, blobs: blobs}
}

// mutation is the per-message bookkeeping for one optimistic write.
type mutation struct {
	id           string
	flag         cache.PendingFlag
	gen          uint64
	prior        cache.PriorValue
	remoteFolder string
	uid          int64
	synced       bool
	sourceFolder string
	targetFolder string
}

// Apply performs the request: optimistic cache writes first, then the remote
// requests, rolling back exactly the flags a rejected change touched. Two
// overlapping requests on the same flag coalesce by the (id, flag) pending
// key: the later request takes over and the earlier one's outcome is ignored.
func (c *Coordinator) Apply(ctx context.Context, mb transport.Mailbox, req Request) (Result, error) {
	target, err := c.resolveTarget(req)
	if err != nil {
		return Result{}, err
	}

	var result Result
	var muts []mutation
	for _, id := range req.IDs {
		mut, err := c.applyOptimistic(id, req.Action, target)
		if err != nil {
			if errors.Is(err, cache.ErrMessageNotFound) {
				result.Missing = append(result.Missing, id)
				continue
			}
			return result, err
		}
		muts = append(muts, mut)
	}

	rejected := 0
	for _, mut := range muts {
		if err := c.issueRemote(ctx, mb, req.Action, mut); err != nil {
			log.Printf("Warning: Remote rejected %s for message %s: %v", req.Action, mut.id, err)
			if c.store.RollbackPending(mut.id, mut.flag, mut.gen, mut.prior) {
				result.RolledBack = append(result.RolledBack, mut.id)
			}
			rejected++
			continue
		}
		c.store.ClearPending(mut.id, mut.flag, mut.gen)
		result.Applied = append(result.Applied, mut.id)
	}

	c.refreshFolders(req.AccountID, muts)

	if rejected > 0 {
		return result, fmt.Errorf("%w: %d of %d changes", ErrRejected, rejected, len(muts))
	}
	return result, nil
}

// resolveTarget validates the destination folder for move/delete actions and
// returns its canonical id.
func (c *Coordinator) resolveTarget(req Request) (string, error) {
	switch req.Action {
	case ActionMove:
		if req.TargetFolder == "" {
			return "", fmt.Errorf("move requires a target folder")
		}
		if _, err := c.store.FolderByID(req.AccountID, req.TargetFolder); err != nil {
			return "", err
		}
		return req.TargetFolder, nil
	case ActionDelete:
		trash, ok := c.store.FolderBySpecialUse(req.AccountID, models.SpecialTrash)
		if !ok {
			return "", fmt.Errorf("no trash folder known for account %s", req.AccountID)
		}
		return trash.ID, nil
	default:
		return "", nil
	}
}

// applyOptimistic records the prior value of exactly the touched flag and
// writes the new state together with its pending tag in one store step, so
// reconciliation can never observe the optimistic value untagged.
func (c *Coordinator) applyOptimistic(id string, action Action, target string) (mutation, error) {
	msg, err := c.store.MessageByID(id)
	if err != nil {
		return mutation{}, err
	}

	srcFolder, err := c.store.FolderByID(msg.AccountID, msg.FolderID)
	if err != nil {
		return mutation{}, err
	}

	mut := mutation{
		id:           id,
		uid:          msg.UID,
		synced:       msg.Synced(),
		remoteFolder: srcFolder.Name,
		sourceFolder: msg.FolderID,
	}

	switch action {
	case ActionMarkRead, ActionMarkUnread:
		mut.flag = cache.PendingRead
		mut.prior = cache.PriorValue{Bool: msg.IsRead}
		value := action == ActionMarkRead
		mut.gen, err = c.store.UpdatePending(id, mut.flag, func(m *models.Message) { m.IsRead = value })
	case ActionStar, ActionUnstar:
		mut.flag = cache.PendingStarred
		mut.prior = cache.PriorValue{Bool: msg.IsStarred}
		value := action == ActionStar
		mut.gen, err = c.store.UpdatePending(id, mut.flag, func(m *models.Message) { m.IsStarred = value })
	case ActionMove, ActionDelete:
		mut.flag = cache.PendingFolder
		mut.prior = cache.PriorValue{FolderID: msg.FolderID}
		mut.targetFolder = target
		mut.gen, err = c.store.MovePending(id, target)
	default:
		return mutation{}, fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return mutation{}, err
	}
	return mut, nil
}

// issueRemote sends the corresponding protocol request. Messages without a
// remote placement yet have nothing to reconcile, so they succeed locally.
func (c *Coordinator) issueRemote(ctx context.Context, mb transport.Mailbox, action Action, mut mutation) error {
	if !mut.synced {
		return nil
	}

	switch action {
	case ActionMarkRead, ActionMarkUnread:
		return mb.Mutate(ctx, mut.remoteFolder, mut.uid, transport.FlagChange{
			Flag: transport.FlagSeen,
			Set:  action == ActionMarkRead,
		})
	case ActionStar, ActionUnstar:
		return mb.Mutate(ctx, mut.remoteFolder, mut.uid, transport.FlagChange{
			Flag: transport.FlagFlagged,
			Set:  action == ActionStar,
		})
	case ActionMove, ActionDelete:
		targetName, err := c.remoteFolderName(mut)
		if err != nil {
			return err
		}
		return mb.Move(ctx, mut.remoteFolder, mut.uid, targetName)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (c *Coordinator) remoteFolderName(mut mutation) (string, error) {
	msg, err := c.store.MessageByID(mut.id)
	if err != nil {
		return "", err
	}
	f, err := c.store.FolderByID(msg.AccountID, mut.targetFolder)
	if err != nil {
		return "", err
	}
	return f.Name, nil
}

// refreshFolders recomputes counts for every folder a mutation touched and
// snapshots them.
func (c *Coordinator) refreshFolders(accountID string, muts []mutation) {
	touched := make(map[string]struct{})
	for _, mut := range muts {
		touched[mut.sourceFolder] = struct{}{}
		if mut.targetFolder != "" {
			touched[mut.targetFolder] = struct{}{}
		}
	}

	for folderID := range touched {
		if _, err := c.store.RecomputeCounts(accountID, folderID); err != nil {
			log.Printf("Warning: Failed to recompute counts for folder %s: %v", folderID, err)
			continue
		}
		if c.blobs != nil {
			if err := c.store.SaveFolderSnapshot(c.blobs, accountID, folderID); err != nil {
				log.Printf("Warning: Failed to snapshot folder %s: %v", folderID, err)
			}
		}
	}
}

// EmptyFolder permanently deletes every message currently cached in a
// folder. The folder record itself stays; this is the empty-trash path.
func (c *Coordinator) EmptyFolder(ctx context.Context, mb transport.Mailbox, accountID, folderID string) (Result, error) {
	if _, err := c.store.FolderByID(accountID, folderID); err != nil {
		return Result{}, err
	}

	messages := c.store.MessagesInFolder(accountID, folderID)
	ids := make([]string, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}
	return c.PermanentDelete(ctx, mb, accountID, ids)
}

// PermanentDelete erases messages remotely and locally. It is not optimistic
// and not reversible: the cache entry is removed only after the remote
// confirms the expunge.
func (c *Coordinator) PermanentDelete(ctx context.Context, mb transport.Mailbox, accountID string, ids []string) (Result, error) {
	var result Result
	failures := 0
	touched := make(map[string]struct{})

	for _, id := range ids {
		msg, err := c.store.MessageByID(id)
		if err != nil {
			result.Missing = append(result.Missing, id)
			continue
		}

		if msg.Synced() {
			f, err := c.store.FolderByID(msg.AccountID, msg.FolderID)
			if err != nil {
				return result, err
			}
			if err := mb.Delete(ctx, f.Name, msg.UID); err != nil {
				log.Printf("Warning: Remote rejected permanent delete of %s: %v", id, err)
				failures++
				continue
			}
		}

		if err := c.store.DeleteMessage(id); err != nil {
			return result, err
		}
		touched[msg.FolderID] = struct{}{}
		result.Applied = append(result.Applied, id)
	}

	var muts []mutation
	for folderID := range touched {
		muts = append(muts, mutation{sourceFolder: folderID})
	}
	c.refreshFolders(accountID, muts)

	if failures > 0 {
		return result, fmt.Errorf("%w: %d of %d deletions", ErrRejected, failures, len(ids))
	}
	return result, nil
}
