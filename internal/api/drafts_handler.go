package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/plumemail/plume/internal/blob"
	"github.com/plumemail/plume/internal/cache"
	"github.com/plumemail/plume/internal/draft"
	"github.com/plumemail/plume/internal/identity"
	"github.com/plumemail/plume/internal/models"
	"github.com/plumemail/plume/internal/smtp"
	"github.com/plumemail/plume/internal/transport"
	ws "github.com/plumemail/plume/internal/websocket"
)

// DraftsHandler manages draft editing, autosave, and sending.
type DraftsHandler struct {
	store   *cache.Store
	blobs   blob.Store
	manager *draft.Manager
	smtps   *smtp.Provider
	hub     *ws.Hub
}

// NewDraftsHandler creates a new DraftsHandler instance.
func NewDraftsHandler(store *cache.Store, blobs blob.Store, manager *draft.Manager, smtps *smtp.Provider, hub *ws.Hub) *DraftsHandler {
	return &DraftsHandler{store: store, blobs: blobs, manager: manager, smtps: smtps, hub: hub}
}

type draftStatus struct {
	DraftID   string    `json:"draftId"`
	State     string    `json:"state"`
	LastSaved time.Time `json:"lastSaved,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (h *DraftsHandler) status(draftID string) draftStatus {
	s := draftStatus{DraftID: draftID}
	if state, ok := h.manager.State(draftID); ok {
		s.State = state.String()
	}
	if err := h.manager.LastError(draftID); err != nil {
		s.Error = err.Error()
	}
	if d, err := h.store.DraftByID(draftID); err == nil {
		s.LastSaved = d.LastSaved
	}
	return s
}

// GetDrafts lists the account's drafts, most recently saved first.
func (h *DraftsHandler) GetDrafts(w http.ResponseWriter, r *http.Request) {
	accountID, ok := RequireQuery(w, r, "accountId")
	if !ok {
		return
	}
	WriteJSONResponse(w, h.store.DraftList(accountID))
}

// GetDraft returns one draft with its autosave status.
func (h *DraftsHandler) GetDraft(w http.ResponseWriter, _ *http.Request, draftID string) {
	d, err := h.store.DraftByID(draftID)
	if err != nil {
		if errors.Is(err, cache.ErrDraftNotFound) {
			http.Error(w, "Draft not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, struct {
		Draft  models.Draft `json:"draft"`
		Status draftStatus  `json:"status"`
	}{Draft: d, Status: h.status(draftID)})
}

// PutDraft records an edit. The first edit of a new draft (empty draft_id)
// allocates an id; the save itself happens after the debounce interval.
func (h *DraftsHandler) PutDraft(w http.ResponseWriter, r *http.Request) {
	var d models.Draft
	if !DecodeJSONBody(w, r, &d) {
		return
	}
	if d.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	draftID := h.manager.Edit(d)
	WriteJSONResponse(w, h.status(draftID))
}

// PostDraftSave flushes a pending edit immediately, skipping the debounce.
func (h *DraftsHandler) PostDraftSave(w http.ResponseWriter, _ *http.Request, draftID string) {
	if err := h.manager.SaveNow(draftID); err != nil {
		log.Printf("DraftsHandler: Failed to save draft %s: %v", draftID, err)
		http.Error(w, "Failed to save draft", http.StatusInternalServerError)
		return
	}

	h.hub.Broadcast(ws.Event{Type: ws.EventDraftSaved, DraftID: draftID})
	WriteJSONResponse(w, h.status(draftID))
}

// DeleteDraft discards a draft. Any in-flight or pending autosave is
// abandoned; the draft slot and its snapshot are gone when this returns.
func (h *DraftsHandler) DeleteDraft(w http.ResponseWriter, _ *http.Request, draftID string) {
	if err := h.manager.Discard(draftID); err != nil {
		log.Printf("DraftsHandler: Failed to discard draft %s: %v", draftID, err)
		http.Error(w, "Failed to discard draft", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PostDraftSend submits the draft over SMTP, retires the draft slot, and
// plants an optimistic copy in the sent folder. The copy carries the
// generated Message-ID, so the next sent-folder sync recognizes the server's
// copy and adopts it in place instead of duplicating.
func (h *DraftsHandler) PostDraftSend(w http.ResponseWriter, r *http.Request, draftID string) {
	d, err := h.store.DraftByID(draftID)
	if err != nil {
		if errors.Is(err, cache.ErrDraftNotFound) {
			http.Error(w, "Draft not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(d.ToAddresses) == 0 && len(d.CCAddresses) == 0 && len(d.BCCAddresses) == 0 {
		http.Error(w, "Draft has no recipients", http.StatusBadRequest)
		return
	}

	sender, err := h.smtps.Sender(d.AccountID)
	if err != nil {
		log.Printf("DraftsHandler: Failed to get sender for account %s: %v", d.AccountID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	composed, from := h.compose(d)
	if err := sender.Send(r.Context(), composed); err != nil {
		log.Printf("DraftsHandler: Failed to send draft %s: %v", draftID, err)
		if errors.Is(err, transport.ErrUnavailable) {
			http.Error(w, "Mail server unavailable", http.StatusServiceUnavailable)
		} else {
			http.Error(w, "Failed to send message", http.StatusInternalServerError)
		}
		return
	}

	if err := h.manager.OnSent(draftID); err != nil {
		log.Printf("Warning: Failed to retire draft %s after send: %v", draftID, err)
	}

	sentID := h.recordSentCopy(d, composed, from)
	WriteJSONResponse(w, struct {
		MessageID string `json:"messageId,omitempty"`
	}{MessageID: sentID})
}

// compose builds the outgoing message from a draft. The From address is the
// account's configured identity.
func (h *DraftsHandler) compose(d models.Draft) (transport.Composed, string) {
	from := d.AccountID
	if acct, ok := h.accountEmail(d.AccountID); ok {
		from = acct
	}
	return transport.Composed{
		MessageID:  identity.MessageIDHeader(""),
		From:       from,
		To:         d.ToAddresses,
		CC:         d.CCAddresses,
		BCC:        d.BCCAddresses,
		Subject:    d.Subject,
		BodyText:   d.BodyText,
		BodyHTML:   d.BodyHTML,
		InReplyTo:  d.InReplyTo,
		References: d.References,
	}, from
}

func (h *DraftsHandler) accountEmail(accountID string) (string, bool) {
	acct, err := h.smtps.Account(accountID)
	if err != nil {
		return "", false
	}
	return acct.Email, true
}

// recordSentCopy inserts the just-sent message into the cached sent folder
// under a local token. It stays unsynced (UID 0) until reconciliation finds
// the server's copy by Message-ID and rekeys it.
func (h *DraftsHandler) recordSentCopy(d models.Draft, composed transport.Composed, from string) string {
	sent, ok := h.store.FolderBySpecialUse(d.AccountID, models.SpecialSent)
	if !ok {
		// No sent folder cached yet; the next full sync will pick the copy
		// up from the server.
		return ""
	}

	now := time.Now()
	msg := &models.Message{
		ID:              identity.LocalToken(),
		AccountID:       d.AccountID,
		FolderID:        sent.ID,
		MessageIDHeader: composed.MessageID,
		FromAddress:     from,
		ToAddresses:     d.ToAddresses,
		CCAddresses:     d.CCAddresses,
		Subject:         d.Subject,
		Preview:         models.Preview(d.BodyText),
		BodyText:        d.BodyText,
		UnsafeBodyHTML:  d.BodyHTML,
		SentAt:          &now,
		References:      d.References,
		IsRead:          true,
	}

	if err := h.store.InsertMessage(msg); err != nil {
		log.Printf("Warning: Failed to cache sent copy of draft %s: %v", d.DraftID, err)
		return ""
	}
	if _, err := h.store.RecomputeCounts(d.AccountID, sent.ID); err != nil {
		log.Printf("Warning: Failed to recompute sent folder counts: %v", err)
	}
	if h.blobs != nil {
		if err := h.store.SaveFolderSnapshot(h.blobs, d.AccountID, sent.ID); err != nil {
			log.Printf("Warning: Failed to snapshot sent folder: %v", err)
		}
	}

	h.hub.Broadcast(ws.Event{Type: ws.EventMutationApplied, AccountID: d.AccountID, FolderID: sent.ID})
	return msg.ID
}
