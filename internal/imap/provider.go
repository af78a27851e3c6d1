package imap

import (
	"fmt"
	"sync"

	"github.com/plumemail/plume/internal/accounts"
	"github.com/plumemail/plume/internal/transport"
)

// Provider hands out one live Mailbox per account, dialing on first use and
// reusing the connection afterwards. A caller that hits a broken connection
// calls Invalidate and asks again for a fresh one.
type Provider struct {
	registry *accounts.Registry
	useTLS   bool

	mu   sync.Mutex
	open map[string]*Mailbox
}

// NewProvider creates a provider over the account registry. useTLS is false
// only when talking to the in-memory test server.
func NewProvider(registry *accounts.Registry, useTLS bool) *Provider {
	return &Provider{
		registry: registry,
		useTLS:   useTLS,
		open:     make(map[string]*Mailbox),
	}
}

// Mailbox returns the account's connection, dialing if none is open.
func (p *Provider) Mailbox(accountID string) (transport.Mailbox, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if mb, ok := p.open[accountID]; ok {
		return mb, nil
	}

	acct, err := p.registry.Get(accountID)
	if err != nil {
		return nil, err
	}
	password, err := p.registry.IMAPPassword(accountID)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", acct.IMAPHost, acct.IMAPPort)
	mb, err := Dial(addr, acct.IMAPUsername, password, p.useTLS)
	if err != nil {
		return nil, err
	}

	p.open[accountID] = mb
	return mb, nil
}

// Invalidate drops a (presumably broken) connection so the next call dials
// a fresh one.
func (p *Provider) Invalidate(accountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if mb, ok := p.open[accountID]; ok {
		_ = mb.Close()
		delete(p.open, accountID)
	}
}

// Close logs out every open connection.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, mb := range p.open {
		_ = mb.Close()
		delete(p.open, id)
	}
}
