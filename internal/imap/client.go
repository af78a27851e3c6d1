// Package imap implements the remote mailbox transport over IMAP.
package imap

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
)

// dialTimeout bounds the TCP/TLS handshake; slow servers fail fast so the
// caller can surface a transport failure instead of hanging the UI.
const dialTimeout = 5 * time.Second

// Connect dials the IMAP server. useTLS is true in production; tests dial
// their in-memory server without TLS.
func Connect(addr string, useTLS bool) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}

	if useTLS {
		c, err := client.DialWithDialerTLS(dialer, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s with TLS: %w", addr, err)
		}
		return c, nil
	}

	c, err := client.DialWithDialer(dialer, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return c, nil
}

// Login authenticates the connection.
func Login(c *client.Client, username, password string) error {
	if err := c.Login(username, password); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	return nil
}
