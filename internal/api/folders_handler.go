package api

import (
	"errors"
	"net/http"

	"github.com/plumemail/plume/internal/cache"
)

// FoldersHandler serves the cached folder list.
type FoldersHandler struct {
	store *cache.Store
}

// NewFoldersHandler creates a new FoldersHandler instance.
func NewFoldersHandler(store *cache.Store) *FoldersHandler {
	return &FoldersHandler{store: store}
}

// GetFolders returns the account's folders in display order: special-use
// roles first (inbox, sent, drafts, spam, trash, archive), then the rest
// alphabetically. Counts are whatever the last reconciliation computed.
func (h *FoldersHandler) GetFolders(w http.ResponseWriter, r *http.Request) {
	accountID, ok := RequireQuery(w, r, "accountId")
	if !ok {
		return
	}

	WriteJSONResponse(w, h.store.FolderList(accountID))
}

// DeleteFolder removes an empty, non-special folder from the cache.
// Special-use folders and folders that still hold messages are refused.
func (h *FoldersHandler) DeleteFolder(w http.ResponseWriter, r *http.Request, folderID string) {
	accountID, ok := RequireQuery(w, r, "accountId")
	if !ok {
		return
	}

	if err := h.store.RemoveFolder(accountID, folderID); err != nil {
		switch {
		case errors.Is(err, cache.ErrFolderNotFound):
			http.Error(w, "Folder not found", http.StatusNotFound)
		case errors.Is(err, cache.ErrFolderProtected):
			http.Error(w, "Folder is protected", http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusConflict)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
