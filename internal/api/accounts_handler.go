package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/plumemail/plume/internal/accounts"
	"github.com/plumemail/plume/internal/imap"
	"github.com/plumemail/plume/internal/models"
)

// AccountsHandler manages the account registry endpoints.
type AccountsHandler struct {
	registry *accounts.Registry
	imaps    *imap.Provider
}

// NewAccountsHandler creates a new AccountsHandler instance.
func NewAccountsHandler(registry *accounts.Registry, imaps *imap.Provider) *AccountsHandler {
	return &AccountsHandler{registry: registry, imaps: imaps}
}

// accountView is the wire shape of an account. Encrypted credentials never
// leave the process.
type accountView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	IMAPHost     string `json:"imapHost"`
	IMAPPort     int    `json:"imapPort"`
	IMAPUsername string `json:"imapUsername"`
	SMTPHost     string `json:"smtpHost"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPUsername string `json:"smtpUsername"`
}

func toAccountView(acct models.Account) accountView {
	return accountView{
		ID:           acct.ID,
		Name:         acct.Name,
		Email:        acct.Email,
		IMAPHost:     acct.IMAPHost,
		IMAPPort:     acct.IMAPPort,
		IMAPUsername: acct.IMAPUsername,
		SMTPHost:     acct.SMTPHost,
		SMTPPort:     acct.SMTPPort,
		SMTPUsername: acct.SMTPUsername,
	}
}

// GetAccounts returns every registered account.
func (h *AccountsHandler) GetAccounts(w http.ResponseWriter, _ *http.Request) {
	list := h.registry.List()
	views := make([]accountView, len(list))
	for i, acct := range list {
		views[i] = toAccountView(acct)
	}
	WriteJSONResponse(w, views)
}

// PostAccount registers a new account.
func (h *AccountsHandler) PostAccount(w http.ResponseWriter, r *http.Request) {
	var cfg accounts.Config
	if !DecodeJSONBody(w, r, &cfg) {
		return
	}
	if cfg.Email == "" || cfg.IMAPHost == "" || cfg.SMTPHost == "" {
		http.Error(w, "email, imap_host, and smtp_host are required", http.StatusBadRequest)
		return
	}

	acct, err := h.registry.Add(cfg)
	if err != nil {
		log.Printf("AccountsHandler: Failed to add account: %v", err)
		http.Error(w, "Failed to add account", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	WriteJSONResponse(w, toAccountView(acct))
}

// DeleteAccount removes an account and drops its open connection.
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, _ *http.Request, accountID string) {
	if err := h.registry.Remove(accountID); err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		log.Printf("AccountsHandler: Failed to remove account %s: %v", accountID, err)
		http.Error(w, "Failed to remove account", http.StatusInternalServerError)
		return
	}

	h.imaps.Invalidate(accountID)
	w.WriteHeader(http.StatusNoContent)
}
