package api

import (
	"errors"
	"net/http"

	"github.com/plumemail/plume/internal/cache"
	"github.com/plumemail/plume/internal/models"
	"github.com/plumemail/plume/internal/view"
)

// MessagesHandler serves cached messages, either as a plain page or as the
// window a virtualized list needs for the current scroll position.
type MessagesHandler struct {
	store *cache.Store
}

// NewMessagesHandler creates a new MessagesHandler instance.
func NewMessagesHandler(store *cache.Store) *MessagesHandler {
	return &MessagesHandler{store: store}
}

type messagesResponse struct {
	Total    int              `json:"total"`
	Window   view.Range       `json:"window"`
	Messages []models.Message `json:"messages"`
}

// GetMessages returns messages in a folder, newest first.
//
// With viewportExtent and itemExtent set, the response carries only the
// window visible at scrollOffset (padded by buffer items on each side).
// Without them it falls back to offset/limit paging.
func (h *MessagesHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	accountID, ok := RequireQuery(w, r, "accountId")
	if !ok {
		return
	}
	folderID, ok := RequireQuery(w, r, "folderId")
	if !ok {
		return
	}

	all := h.store.MessagesInFolder(accountID, folderID)

	viewportExtent := QueryInt(r, "viewportExtent", 0)
	itemExtent := QueryInt(r, "itemExtent", 0)
	if viewportExtent > 0 && itemExtent > 0 {
		scrollOffset := QueryInt(r, "scrollOffset", 0)
		buffer := QueryInt(r, "buffer", 0)
		window := view.Visible(len(all), itemExtent, viewportExtent, scrollOffset, buffer)
		WriteJSONResponse(w, messagesResponse{
			Total:    len(all),
			Window:   window,
			Messages: all[window.Start:window.End],
		})
		return
	}

	offset := QueryInt(r, "offset", 0)
	limit := QueryInt(r, "limit", 50)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	WriteJSONResponse(w, messagesResponse{
		Total:    len(all),
		Window:   view.Range{Start: offset, End: end},
		Messages: all[offset:end],
	})
}

// GetMessage returns one cached message by id.
func (h *MessagesHandler) GetMessage(w http.ResponseWriter, _ *http.Request, id string) {
	msg, err := h.store.MessageByID(id)
	if err != nil {
		if errors.Is(err, cache.ErrMessageNotFound) {
			http.Error(w, "Message not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, msg)
}
