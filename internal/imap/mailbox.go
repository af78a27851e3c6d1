package imap

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/plumemail/plume/internal/transport"
)

// Mailbox adapts one IMAP connection to the transport.Mailbox interface.
// The IMAP protocol pipelines poorly across goroutines, so every command on
// a connection is serialized by an internal mutex.
type Mailbox struct {
	mu sync.Mutex
	c  *client.Client
}

var _ transport.Mailbox = (*Mailbox)(nil)

// NewMailbox wraps an authenticated IMAP client.
func NewMailbox(c *client.Client) *Mailbox {
	return &Mailbox{c: c}
}

// Dial connects, authenticates, and returns a ready Mailbox.
func Dial(addr, username, password string, useTLS bool) (*Mailbox, error) {
	c, err := Connect(addr, useTLS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrUnavailable, err)
	}
	if err := Login(c, username, password); err != nil {
		_ = c.Logout()
		return nil, err
	}
	return NewMailbox(c), nil
}

// Close logs out the underlying connection.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c.Logout()
}

// ListFolders returns the server's folder descriptors. Selectable folders
// also carry their message count from STATUS.
func (m *Mailbox) ListFolders(ctx context.Context) ([]transport.FolderInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- m.c.List("", "*", mailboxes)
	}()

	var infos []transport.FolderInfo
	for mb := range mailboxes {
		infos = append(infos, transport.FolderInfo{
			Name:       mb.Name,
			Delimiter:  mb.Delimiter,
			Attributes: mb.Attributes,
		})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: failed to list folders: %v", transport.ErrUnavailable, err)
	}

	for i := range infos {
		if hasAttribute(infos[i].Attributes, imap.NoSelectAttr) {
			continue
		}
		status, err := m.c.Status(infos[i].Name, []imap.StatusItem{imap.StatusMessages})
		if err != nil {
			log.Printf("Warning: Failed to get status for folder %s: %v", infos[i].Name, err)
			continue
		}
		infos[i].Total = status.Messages
	}

	return infos, nil
}

// FetchMessages fetches up to limit of the most recent messages in a folder,
// including flags, envelope, and body.
func (m *Mailbox) FetchMessages(ctx context.Context, folder string, limit uint32) ([]transport.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mbox, err := m.c.Select(folder, false)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select folder %s: %v", transport.ErrUnavailable, folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if limit > 0 && mbox.Messages > limit {
		from = mbox.Messages - limit + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchBodyStructure,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.c.Fetch(seqSet, items, messages)
	}()

	var result []transport.Item
	for msg := range messages {
		item, err := ParseItem(msg)
		if err != nil {
			log.Printf("Warning: Failed to parse message UID %d in %s: %v", msg.Uid, folder, err)
			continue
		}
		result = append(result, item)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %v", transport.ErrUnavailable, folder, err)
	}

	return result, nil
}

// Mutate sets or clears one flag on one message.
func (m *Mailbox) Mutate(ctx context.Context, folder string, uid int64, change transport.FlagChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	flag, err := imapFlag(change.Flag)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.c.Select(folder, false); err != nil {
		return fmt.Errorf("%w: failed to select folder %s: %v", transport.ErrUnavailable, folder, err)
	}

	op := imap.FlagsOp(imap.AddFlags)
	if !change.Set {
		op = imap.FlagsOp(imap.RemoveFlags)
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))

	storeItem := imap.FormatFlagsOp(op, true)
	if err := m.c.UidStore(seqSet, storeItem, []interface{}{flag}, nil); err != nil {
		return fmt.Errorf("failed to store flags on uid %d: %w", uid, err)
	}
	return nil
}

// Move relocates one message to another folder.
func (m *Mailbox) Move(ctx context.Context, folder string, uid int64, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.c.Select(folder, false); err != nil {
		return fmt.Errorf("%w: failed to select folder %s: %v", transport.ErrUnavailable, folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))
	if err := m.c.UidMove(seqSet, target); err != nil {
		// Some servers advertise MOVE but refuse the command. The classic
		// copy, mark deleted, expunge sequence works everywhere.
		log.Printf("Warning: MOVE of uid %d to %s failed, falling back to copy: %v", uid, target, err)
		return m.moveByCopy(seqSet, folder, uid, target)
	}
	return nil
}

func (m *Mailbox) moveByCopy(seqSet *imap.SeqSet, folder string, uid int64, target string) error {
	if err := m.c.UidCopy(seqSet, target); err != nil {
		return fmt.Errorf("failed to move uid %d to %s: %w", uid, target, err)
	}
	storeItem := imap.FormatFlagsOp(imap.FlagsOp(imap.AddFlags), true)
	if err := m.c.UidStore(seqSet, storeItem, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("failed to mark uid %d deleted after copy: %w", uid, err)
	}
	if err := m.c.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge folder %s: %w", folder, err)
	}
	return nil
}

// Delete expunges one message permanently.
func (m *Mailbox) Delete(ctx context.Context, folder string, uid int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.c.Select(folder, false); err != nil {
		return fmt.Errorf("%w: failed to select folder %s: %v", transport.ErrUnavailable, folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))
	storeItem := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := m.c.UidStore(seqSet, storeItem, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("failed to mark uid %d deleted: %w", uid, err)
	}
	if err := m.c.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge folder %s: %w", folder, err)
	}
	return nil
}

func imapFlag(flag transport.Flag) (string, error) {
	switch flag {
	case transport.FlagSeen:
		return imap.SeenFlag, nil
	case transport.FlagFlagged:
		return imap.FlaggedFlag, nil
	default:
		return "", fmt.Errorf("unsupported flag %q", flag)
	}
}

func hasAttribute(attributes []string, want string) bool {
	for _, attr := range attributes {
		if strings.EqualFold(attr, want) {
			return true
		}
	}
	return false
}
