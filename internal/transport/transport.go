// Package transport defines the interfaces the cache engine consumes from
// the remote mailbox protocol layer. Implementations live in internal/imap
// and internal/smtp; the engine itself never speaks the wire protocol.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the remote mailbox cannot be reached.
// A reconciliation batch that hits it aborts and leaves the cache untouched.
var ErrUnavailable = errors.New("remote mailbox unavailable")

// Flag is a remote message flag the engine can change.
type Flag string

const (
	FlagSeen    Flag = "seen"
	FlagFlagged Flag = "flagged"
)

// FlagChange describes setting or clearing a single flag.
type FlagChange struct {
	Flag Flag
	Set  bool
}

// FolderInfo is a remote folder descriptor as reported by the server.
type FolderInfo struct {
	Name       string
	Delimiter  string
	Attributes []string
	Total      uint32
}

// Item is one remote message as reported by a fetch.
type Item struct {
	UID            int64
	MessageID      string
	From           string
	To             []string
	CC             []string
	Subject        string
	Date           time.Time
	BodyText       string
	BodyHTML       string
	Read           bool
	Starred        bool
	HasAttachments bool
	Attachments    []ItemAttachment
}

// ItemAttachment is attachment metadata carried on a fetched item.
type ItemAttachment struct {
	Filename  string
	MimeType  string
	SizeBytes int64
	IsInline  bool
	ContentID string
}

// Composed is a fully assembled outgoing message. MessageID is generated by
// the caller before sending so the local optimistic copy and the copy the
// server later reports share an identity.
type Composed struct {
	MessageID  string
	From       string
	To         []string
	CC         []string
	BCC        []string
	Subject    string
	BodyText   string
	BodyHTML   string
	InReplyTo  string
	References []string
}

// Mailbox is the read/mutate surface of the remote mailbox protocol.
// Retry and timeout policy belong to implementations, not to callers.
type Mailbox interface {
	ListFolders(ctx context.Context) ([]FolderInfo, error)
	FetchMessages(ctx context.Context, folder string, limit uint32) ([]Item, error)
	Mutate(ctx context.Context, folder string, uid int64, change FlagChange) error
	Move(ctx context.Context, folder string, uid int64, target string) error
	Delete(ctx context.Context, folder string, uid int64) error
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg Composed) error
}
