package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/plumemail/plume/internal/imap"
	"github.com/plumemail/plume/internal/sync"
	"github.com/plumemail/plume/internal/transport"
	ws "github.com/plumemail/plume/internal/websocket"
)

// SyncHandler triggers reconciliation of the cache against the remote
// mailbox.
type SyncHandler struct {
	engine     *sync.Engine
	imaps      *imap.Provider
	hub        *ws.Hub
	fetchLimit uint32
}

// NewSyncHandler creates a new SyncHandler instance.
func NewSyncHandler(engine *sync.Engine, imaps *imap.Provider, hub *ws.Hub, fetchLimit uint32) *SyncHandler {
	return &SyncHandler{engine: engine, imaps: imaps, hub: hub, fetchLimit: fetchLimit}
}

type syncRequest struct {
	AccountID string `json:"account_id"`
	Folder    string `json:"folder,omitempty"`
}

// PostSync reconciles one folder, or the whole account when no folder is
// named. The response reports per-folder merge statistics.
func (h *SyncHandler) PostSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	mb, err := h.imaps.Mailbox(req.AccountID)
	if err != nil {
		log.Printf("SyncHandler: Failed to get mailbox for account %s: %v", req.AccountID, err)
		if errors.Is(err, transport.ErrUnavailable) {
			http.Error(w, "Mail server unavailable", http.StatusServiceUnavailable)
		} else {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	var results []sync.Result
	if req.Folder != "" {
		result, err := h.engine.SyncFolder(r.Context(), req.AccountID, mb, req.Folder, h.fetchLimit)
		if err != nil {
			h.writeSyncError(w, req.AccountID, err)
			return
		}
		results = []sync.Result{result}
	} else {
		results, err = h.engine.SyncAccount(r.Context(), req.AccountID, mb, h.fetchLimit)
		if err != nil {
			h.writeSyncError(w, req.AccountID, err)
			return
		}
	}

	for _, result := range results {
		h.hub.Broadcast(ws.Event{
			Type:      ws.EventFolderSynced,
			AccountID: req.AccountID,
			FolderID:  result.Folder.ID,
		})
	}

	WriteJSONResponse(w, results)
}

func (h *SyncHandler) writeSyncError(w http.ResponseWriter, accountID string, err error) {
	log.Printf("SyncHandler: Sync failed for account %s: %v", accountID, err)
	if errors.Is(err, transport.ErrUnavailable) {
		// The connection may be broken; the next request dials fresh.
		h.imaps.Invalidate(accountID)
		http.Error(w, "Mail server unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Sync failed", http.StatusInternalServerError)
}
