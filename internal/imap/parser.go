package imap

import (
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"

	"github.com/plumemail/plume/internal/transport"
)

// ParseItem converts a fetched IMAP message into a transport item.
func ParseItem(imapMsg *imap.Message) (transport.Item, error) {
	if imapMsg == nil {
		return transport.Item{}, fmt.Errorf("imap message is nil")
	}

	item := transport.Item{
		UID: int64(imapMsg.Uid),
	}

	for _, flag := range imapMsg.Flags {
		switch flag {
		case imap.SeenFlag:
			item.Read = true
		case imap.FlaggedFlag:
			item.Starred = true
		}
	}

	if env := imapMsg.Envelope; env != nil {
		if len(env.From) > 0 {
			item.From = formatAddress(env.From[0])
		}
		item.To = formatAddressList(env.To)
		item.CC = formatAddressList(env.Cc)
		item.Subject = env.Subject
		item.Date = env.Date
		item.MessageID = env.MessageId
	}

	if imapMsg.Body != nil {
		section := &imap.BodySectionName{Peek: true}
		bodyReader := imapMsg.GetBody(section)
		if bodyReader == nil {
			// Some servers report the section without the Peek marker.
			bodyReader = imapMsg.GetBody(&imap.BodySectionName{})
		}
		if bodyReader != nil {
			if err := parseBody(bodyReader, &item); err != nil {
				// Headers alone are still useful; the body stays empty.
				_ = err
			}
		}
	}

	return item, nil
}

// parseBody fills body text, HTML, and attachment metadata using enmime.
func parseBody(bodyReader io.Reader, item *transport.Item) error {
	envelope, err := enmime.ReadEnvelope(bodyReader)
	if err != nil {
		return fmt.Errorf("failed to parse message body: %w", err)
	}

	item.BodyText = envelope.Text
	item.BodyHTML = envelope.HTML

	for _, part := range envelope.Attachments {
		item.Attachments = append(item.Attachments, transport.ItemAttachment{
			Filename:  part.FileName,
			MimeType:  part.ContentType,
			SizeBytes: int64(len(part.Content)),
		})
	}
	for _, part := range envelope.Inlines {
		if part.ContentID == "" {
			continue
		}
		item.Attachments = append(item.Attachments, transport.ItemAttachment{
			Filename:  part.FileName,
			MimeType:  part.ContentType,
			SizeBytes: int64(len(part.Content)),
			IsInline:  true,
			ContentID: part.ContentID,
		})
	}
	item.HasAttachments = len(item.Attachments) > 0

	return nil
}

// formatAddress renders an IMAP address as "Name <box@host>" or "box@host".
func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}
	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}
	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", address.PersonalName, address.MailboxName, address.HostName)
	}
	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

func formatAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if formatted := formatAddress(address); formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}
