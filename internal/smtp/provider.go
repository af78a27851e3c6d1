package smtp

import (
	"fmt"

	"github.com/plumemail/plume/internal/accounts"
	"github.com/plumemail/plume/internal/models"
	"github.com/plumemail/plume/internal/transport"
)

// Provider builds a Sender for an account on demand. SMTP submission opens a
// fresh connection per message, so there is nothing to cache here.
type Provider struct {
	registry *accounts.Registry
	useTLS   bool
}

// NewProvider creates a provider over the account registry. useTLS is false
// only when talking to a local plaintext test server.
func NewProvider(registry *accounts.Registry, useTLS bool) *Provider {
	return &Provider{registry: registry, useTLS: useTLS}
}

// Account looks up the account record behind an id.
func (p *Provider) Account(accountID string) (models.Account, error) {
	return p.registry.Get(accountID)
}

// Sender returns a sender configured for the account's SMTP endpoint.
func (p *Provider) Sender(accountID string) (transport.Sender, error) {
	acct, err := p.registry.Get(accountID)
	if err != nil {
		return nil, err
	}
	password, err := p.registry.SMTPPassword(accountID)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", acct.SMTPHost, acct.SMTPPort)
	return NewSender(addr, acct.SMTPUsername, password, p.useTLS), nil
}
