// Package accounts manages the mailbox accounts known to this session.
// Credentials are encrypted at rest; the registry persists itself as a
// single blob document.
package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/plumemail/plume/internal/blob"
	"github.com/plumemail/plume/internal/crypto"
	"github.com/plumemail/plume/internal/models"
)

// ErrAccountNotFound is returned when no account exists for an id.
var ErrAccountNotFound = errors.New("account not found")

const registryKey = "accounts"

// Config carries the plaintext inputs for registering an account.
type Config struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
}

// Registry is the account store for a session.
type Registry struct {
	mu       sync.Mutex
	blobs    blob.Store
	enc      *crypto.Encryptor
	accounts map[string]*models.Account
}

// NewRegistry loads the registry from the blob store. A missing document
// yields an empty registry.
func NewRegistry(blobs blob.Store, enc *crypto.Encryptor) (*Registry, error) {
	r := &Registry{
		blobs:    blobs,
		enc:      enc,
		accounts: make(map[string]*models.Account),
	}

	data, err := blobs.Read(registryKey)
	if errors.Is(err, blob.ErrNotFound) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	var stored []*models.Account
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	for _, acct := range stored {
		r.accounts[acct.ID] = acct
	}
	return r, nil
}

// Add registers a new account, encrypting both passwords before anything is
// stored, and persists the registry.
func (r *Registry) Add(cfg Config) (models.Account, error) {
	encryptedIMAP, err := r.enc.Encrypt(cfg.IMAPPassword)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to encrypt IMAP password: %w", err)
	}
	encryptedSMTP, err := r.enc.Encrypt(cfg.SMTPPassword)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to encrypt SMTP password: %w", err)
	}

	acct := &models.Account{
		ID:                    uuid.NewString(),
		Name:                  cfg.Name,
		Email:                 cfg.Email,
		IMAPHost:              cfg.IMAPHost,
		IMAPPort:              cfg.IMAPPort,
		IMAPUsername:          cfg.IMAPUsername,
		EncryptedIMAPPassword: encryptedIMAP,
		SMTPHost:              cfg.SMTPHost,
		SMTPPort:              cfg.SMTPPort,
		SMTPUsername:          cfg.SMTPUsername,
		EncryptedSMTPPassword: encryptedSMTP,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts[acct.ID] = acct
	if err := r.persistLocked(); err != nil {
		delete(r.accounts, acct.ID)
		return models.Account{}, err
	}
	return *acct, nil
}

// Get returns a copy of the account, or ErrAccountNotFound.
func (r *Registry) Get(id string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return *acct, nil
}

// List returns all accounts ordered by name.
func (r *Registry) List() []models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Remove deletes an account and persists the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	delete(r.accounts, id)
	return r.persistLocked()
}

// IMAPPassword decrypts the account's IMAP password.
func (r *Registry) IMAPPassword(id string) (string, error) {
	acct, err := r.Get(id)
	if err != nil {
		return "", err
	}
	password, err := r.enc.Decrypt(acct.EncryptedIMAPPassword)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}
	return password, nil
}

// SMTPPassword decrypts the account's SMTP password.
func (r *Registry) SMTPPassword(id string) (string, error) {
	acct, err := r.Get(id)
	if err != nil {
		return "", err
	}
	password, err := r.enc.Decrypt(acct.EncryptedSMTPPassword)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}
	return password, nil
}

// persistLocked writes the registry as one document. Caller must hold r.mu.
func (r *Registry) persistLocked() error {
	stored := make([]*models.Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		stored = append(stored, acct)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].ID < stored[j].ID })

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}
	if err := r.blobs.Write(registryKey, data); err != nil {
		return fmt.Errorf("failed to persist accounts: %w", err)
	}
	return nil
}
