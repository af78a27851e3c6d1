package main

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/plumemail/plume/internal/accounts"
	"github.com/plumemail/plume/internal/api"
	"github.com/plumemail/plume/internal/blob"
	"github.com/plumemail/plume/internal/cache"
	"github.com/plumemail/plume/internal/config"
	"github.com/plumemail/plume/internal/crypto"
	"github.com/plumemail/plume/internal/draft"
	"github.com/plumemail/plume/internal/imap"
	"github.com/plumemail/plume/internal/mutate"
	"github.com/plumemail/plume/internal/smtp"
	"github.com/plumemail/plume/internal/sync"
	ws "github.com/plumemail/plume/internal/websocket"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	blobs, err := blob.OpenSQLite(cfg.DataPath)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	defer func() { _ = blobs.Close() }()

	log.Printf("Opened blob store at %s", cfg.DataPath)

	server := NewServer(cfg, blobs)

	address := ":" + cfg.Port
	log.Printf("Plume engine starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates and returns the HTTP handler for the Plume API server.
func NewServer(cfg *config.Config, blobs blob.Store) http.Handler {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	registry, err := accounts.NewRegistry(blobs, encryptor)
	if err != nil {
		log.Fatalf("Failed to load account registry: %v", err)
	}

	store := cache.NewStore()
	if err := store.LoadSnapshots(blobs); err != nil {
		log.Printf("Warning: Failed to load cache snapshots: %v", err)
	}

	imaps := imap.NewProvider(registry, true)
	smtps := smtp.NewProvider(registry, true)
	engine := sync.NewEngine(store, blobs)
	coordinator := mutate.NewCoordinator(store, blobs)
	saver := draft.NewStoreSaver(store, blobs)
	drafts := draft.NewManager(saver, cfg.DraftSaveDebounce)
	wsHub := ws.NewHub(10)

	accountsHandler := api.NewAccountsHandler(registry, imaps)
	foldersHandler := api.NewFoldersHandler(store)
	messagesHandler := api.NewMessagesHandler(store)
	mutationsHandler := api.NewMutationsHandler(coordinator, imaps, wsHub)
	draftsHandler := api.NewDraftsHandler(store, blobs, drafts, smtps, wsHub)
	syncHandler := api.NewSyncHandler(engine, imaps, wsHub, cfg.SyncFetchLimit)
	wsHandler := api.NewWebSocketHandler(wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/accounts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			accountsHandler.GetAccounts(w, r)
		case http.MethodPost:
			accountsHandler.PostAccount(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	// Handle /api/v1/accounts/{account_id} pattern
	mux.Handle("/api/v1/accounts/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
		if accountID == "" {
			http.Error(w, "account_id is required", http.StatusBadRequest)
			return
		}
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		accountsHandler.DeleteAccount(w, r, accountID)
	}))

	mux.Handle("/api/v1/folders", http.HandlerFunc(foldersHandler.GetFolders))

	// Handle /api/v1/folders/empty and /api/v1/folders/{folder_id} patterns
	mux.Handle("/api/v1/folders/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/folders/")
		switch {
		case rest == "empty":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			mutationsHandler.PostEmptyFolder(w, r)
		case rest == "":
			http.Error(w, "folder_id is required", http.StatusBadRequest)
		case r.Method == http.MethodDelete:
			foldersHandler.DeleteFolder(w, r, rest)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.Handle("/api/v1/messages", http.HandlerFunc(messagesHandler.GetMessages))

	mux.Handle("/api/v1/messages/permanent-delete", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		mutationsHandler.PostPermanentDelete(w, r)
	}))

	// Handle /api/v1/message/{message_id} pattern
	mux.Handle("/api/v1/message/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		messageID := strings.TrimPrefix(r.URL.Path, "/api/v1/message/")
		if messageID == "" {
			http.Error(w, "message_id is required", http.StatusBadRequest)
			return
		}
		messagesHandler.GetMessage(w, r, messageID)
	}))

	mux.Handle("/api/v1/mutations", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		mutationsHandler.PostMutation(w, r)
	}))

	mux.Handle("/api/v1/drafts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			draftsHandler.GetDrafts(w, r)
		case http.MethodPut:
			draftsHandler.PutDraft(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	// Handle /api/v1/drafts/{draft_id}[/save|/send] patterns
	mux.Handle("/api/v1/drafts/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routeDraft(w, r, draftsHandler)
	}))

	mux.Handle("/api/v1/sync", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		syncHandler.PostSync(w, r)
	}))

	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Handle))

	return mux
}

// routeDraft dispatches /api/v1/drafts/{draft_id} and its /save and /send
// sub-resources.
func routeDraft(w http.ResponseWriter, r *http.Request, h *api.DraftsHandler) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/drafts/")
	if rest == "" {
		http.Error(w, "draft_id is required", http.StatusBadRequest)
		return
	}

	draftID, action, _ := strings.Cut(rest, "/")
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.GetDraft(w, r, draftID)
		case http.MethodDelete:
			h.DeleteDraft(w, r, draftID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "save":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.PostDraftSave(w, r, draftID)
	case "send":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.PostDraftSend(w, r, draftID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Plume engine is running")
}
