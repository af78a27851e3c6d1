// Package smtp implements the outgoing message transport.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/plumemail/plume/internal/transport"
)

// Sender delivers composed messages through one SMTP endpoint.
type Sender struct {
	addr     string
	username string
	password string
	useTLS   bool
}

var _ transport.Sender = (*Sender)(nil)

// NewSender configures a sender. useTLS selects STARTTLS; tests disable it
// to talk to a local plaintext server.
func NewSender(addr, username, password string, useTLS bool) *Sender {
	return &Sender{addr: addr, username: username, password: password, useTLS: useTLS}
}

// Send assembles the MIME message and submits it. The recipient set is the
// union of To, CC, and BCC; BCC never appears in the message headers.
func (s *Sender) Send(ctx context.Context, msg transport.Composed) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recipients := make([]string, 0, len(msg.To)+len(msg.CC)+len(msg.BCC))
	recipients = append(recipients, msg.To...)
	recipients = append(recipients, msg.CC...)
	recipients = append(recipients, msg.BCC...)
	if len(recipients) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	raw, err := assemble(msg)
	if err != nil {
		return err
	}

	client, err := s.dial()
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrUnavailable, err)
	}
	defer func() { _ = client.Close() }()

	if s.username != "" {
		auth := sasl.NewPlainClient("", s.username, s.password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate with SMTP server: %w", err)
		}
	}

	if err := client.SendMail(msg.From, recipients, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return client.Quit()
}

func (s *Sender) dial() (*gosmtp.Client, error) {
	if s.useTLS {
		return gosmtp.DialStartTLS(s.addr, nil)
	}
	return gosmtp.Dial(s.addr)
}

// assemble renders the composed message as RFC 5322 MIME, with an
// alternative part when both plain and HTML bodies are present.
func assemble(msg transport.Composed) ([]byte, error) {
	var header mail.Header
	header.SetDate(time.Now())
	header.SetSubject(msg.Subject)
	if msg.MessageID != "" {
		header.SetMessageID(strings.Trim(msg.MessageID, "<>"))
	}
	if msg.InReplyTo != "" {
		header.Set("In-Reply-To", msg.InReplyTo)
	}
	if len(msg.References) > 0 {
		header.Set("References", strings.Join(msg.References, " "))
	}

	if err := setAddresses(&header, "From", []string{msg.From}); err != nil {
		return nil, err
	}
	if err := setAddresses(&header, "To", msg.To); err != nil {
		return nil, err
	}
	if err := setAddresses(&header, "Cc", msg.CC); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if msg.BodyHTML == "" {
		header.Set("Content-Type", "text/plain; charset=utf-8")
		w, err := mail.CreateSingleInlineWriter(&buf, header)
		if err != nil {
			return nil, fmt.Errorf("failed to create message writer: %w", err)
		}
		if _, err := io.WriteString(w, msg.BodyText); err != nil {
			return nil, fmt.Errorf("failed to write body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}

	if err := writeInlinePart(tw, "text/plain; charset=utf-8", msg.BodyText); err != nil {
		return nil, err
	}
	if err := writeInlinePart(tw, "text/html; charset=utf-8", msg.BodyHTML); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeInlinePart(tw *mail.InlineWriter, contentType, body string) error {
	var partHeader mail.InlineHeader
	partHeader.Set("Content-Type", contentType)
	w, err := tw.CreatePart(partHeader)
	if err != nil {
		return fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write body part: %w", err)
	}
	return w.Close()
}

func setAddresses(header *mail.Header, field string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	addresses := make([]*mail.Address, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if parsed, err := netmail.ParseAddress(value); err == nil {
			addresses = append(addresses, &mail.Address{Name: parsed.Name, Address: parsed.Address})
			continue
		}
		// Bare addresses without a display name are common in the UI.
		addresses = append(addresses, &mail.Address{Address: value})
	}
	if len(addresses) == 0 {
		return nil
	}
	header.SetAddressList(field, addresses)
	return nil
}
