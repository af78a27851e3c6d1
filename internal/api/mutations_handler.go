package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/plumemail/plume/internal/cache"
	"github.com/plumemail/plume/internal/imap"
	"github.com/plumemail/plume/internal/mutate"
	"github.com/plumemail/plume/internal/transport"
	ws "github.com/plumemail/plume/internal/websocket"
)

// MutationsHandler applies bulk state changes to cached messages.
type MutationsHandler struct {
	coordinator *mutate.Coordinator
	imaps       *imap.Provider
	hub         *ws.Hub
}

// NewMutationsHandler creates a new MutationsHandler instance.
func NewMutationsHandler(coordinator *mutate.Coordinator, imaps *imap.Provider, hub *ws.Hub) *MutationsHandler {
	return &MutationsHandler{coordinator: coordinator, imaps: imaps, hub: hub}
}

type mutationResponse struct {
	mutate.Result
	Rejected bool `json:"rejected"`
}

// PostMutation applies one bulk mutation request. A partially rejected
// request still returns the per-id outcome, with a 409 status; the cache has
// already rolled back the rejected changes by then.
func (h *MutationsHandler) PostMutation(w http.ResponseWriter, r *http.Request) {
	var req mutate.Request
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.AccountID == "" || len(req.IDs) == 0 || req.Action == "" {
		http.Error(w, "account_id, ids, and action are required", http.StatusBadRequest)
		return
	}

	mb, ok := h.mailbox(w, req.AccountID)
	if !ok {
		return
	}

	result, err := h.coordinator.Apply(r.Context(), mb, req)
	if err != nil && !errors.Is(err, mutate.ErrRejected) {
		h.writeMutationError(w, req.AccountID, err)
		return
	}

	h.hub.Broadcast(ws.Event{Type: ws.EventMutationApplied, AccountID: req.AccountID})

	if errors.Is(err, mutate.ErrRejected) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		WriteJSONResponse(w, mutationResponse{Result: result, Rejected: true})
		return
	}
	WriteJSONResponse(w, mutationResponse{Result: result})
}

// PostPermanentDelete removes messages for good, remote first. Unlike the
// bulk mutations there is no optimistic phase: a message disappears from the
// cache only after the server confirmed the expunge.
func (h *MutationsHandler) PostPermanentDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string   `json:"account_id"`
		IDs       []string `json:"ids"`
	}
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.AccountID == "" || len(req.IDs) == 0 {
		http.Error(w, "account_id and ids are required", http.StatusBadRequest)
		return
	}

	mb, ok := h.mailbox(w, req.AccountID)
	if !ok {
		return
	}

	result, err := h.coordinator.PermanentDelete(r.Context(), mb, req.AccountID, req.IDs)
	if err != nil && !errors.Is(err, mutate.ErrRejected) {
		h.writeMutationError(w, req.AccountID, err)
		return
	}

	h.hub.Broadcast(ws.Event{Type: ws.EventMutationApplied, AccountID: req.AccountID})

	if errors.Is(err, mutate.ErrRejected) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		WriteJSONResponse(w, mutationResponse{Result: result, Rejected: true})
		return
	}
	WriteJSONResponse(w, mutationResponse{Result: result})
}

// PostEmptyFolder permanently deletes everything in one folder, typically
// the trash. Like PostPermanentDelete this is remote-first, so a rejected
// expunge leaves the affected message in the cache.
func (h *MutationsHandler) PostEmptyFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
		FolderID  string `json:"folder_id"`
	}
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.AccountID == "" || req.FolderID == "" {
		http.Error(w, "account_id and folder_id are required", http.StatusBadRequest)
		return
	}

	mb, ok := h.mailbox(w, req.AccountID)
	if !ok {
		return
	}

	result, err := h.coordinator.EmptyFolder(r.Context(), mb, req.AccountID, req.FolderID)
	if err != nil && !errors.Is(err, mutate.ErrRejected) {
		h.writeMutationError(w, req.AccountID, err)
		return
	}

	h.hub.Broadcast(ws.Event{Type: ws.EventMutationApplied, AccountID: req.AccountID, FolderID: req.FolderID})

	if errors.Is(err, mutate.ErrRejected) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		WriteJSONResponse(w, mutationResponse{Result: result, Rejected: true})
		return
	}
	WriteJSONResponse(w, mutationResponse{Result: result})
}

func (h *MutationsHandler) mailbox(w http.ResponseWriter, accountID string) (transport.Mailbox, bool) {
	mb, err := h.imaps.Mailbox(accountID)
	if err != nil {
		log.Printf("MutationsHandler: Failed to get mailbox for account %s: %v", accountID, err)
		if errors.Is(err, transport.ErrUnavailable) {
			http.Error(w, "Mail server unavailable", http.StatusServiceUnavailable)
		} else {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return nil, false
	}
	return mb, true
}

func (h *MutationsHandler) writeMutationError(w http.ResponseWriter, accountID string, err error) {
	log.Printf("MutationsHandler: Mutation failed for account %s: %v", accountID, err)
	switch {
	case errors.Is(err, cache.ErrFolderNotFound):
		http.Error(w, "Target folder not found", http.StatusBadRequest)
	case errors.Is(err, transport.ErrUnavailable):
		h.imaps.Invalidate(accountID)
		http.Error(w, "Mail server unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Failed to apply mutation", http.StatusInternalServerError)
	}
}
