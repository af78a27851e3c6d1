package models

import "time"

// SpecialUse identifies the canonical role of a folder.
type SpecialUse string

const (
	SpecialInbox   SpecialUse = "inbox"
	SpecialSent    SpecialUse = "sent"
	SpecialDrafts  SpecialUse = "drafts"
	SpecialTrash   SpecialUse = "trash"
	SpecialSpam    SpecialUse = "spam"
	SpecialArchive SpecialUse = "archive"
	SpecialNone    SpecialUse = "none"
)

// Folder is a canonical mailbox partition. Count fields are always recomputed
// from the authoritative message set, never incremented in place.
type Folder struct {
	ID              string     `json:"id"`
	AccountID       string     `json:"account_id"`
	Name            string     `json:"name"`
	Delimiter       string     `json:"delimiter,omitempty"`
	Icon            string     `json:"icon"`
	SpecialUse      SpecialUse `json:"special_use"`
	UnreadCount     int        `json:"unread_count"`
	TotalCount      int        `json:"total_count"`
	StarredCount    int        `json:"starred_count"`
	AttachmentCount int        `json:"attachment_count"`
}

// Message is one mailbox item. It is owned by the cache store; the UI layer
// holds ids only and mutates through the bulk mutation coordinator.
type Message struct {
	ID              string       `json:"id"`
	AccountID       string       `json:"account_id"`
	FolderID        string       `json:"folder_id"`
	UID             int64        `json:"uid"`
	MessageIDHeader string       `json:"message_id_header,omitempty"`
	FromAddress     string       `json:"from_address"`
	ToAddresses     []string     `json:"to_addresses,omitempty"`
	CCAddresses     []string     `json:"cc_addresses,omitempty"`
	BCCAddresses    []string     `json:"bcc_addresses,omitempty"`
	Subject         string       `json:"subject"`
	Preview         string       `json:"preview,omitempty"`
	BodyText        string       `json:"body_text,omitempty"`
	UnsafeBodyHTML  string       `json:"unsafe_body_html,omitempty"`
	SentAt          *time.Time   `json:"sent_at,omitempty"`
	References      []string     `json:"references,omitempty"`
	Labels          []string     `json:"labels,omitempty"`
	IsRead          bool         `json:"is_read"`
	IsStarred       bool         `json:"is_starred"`
	HasAttachments  bool         `json:"has_attachments"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

// Synced reports whether the message has a confirmed remote placement.
// Locally originated messages keep UID 0 until the remote acknowledges them.
func (m *Message) Synced() bool {
	return m.UID > 0
}

// Attachment carries attachment metadata. Binary content is never cached;
// it is fetched (or attached) at the moment it is needed.
type Attachment struct {
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	IsInline  bool   `json:"is_inline"`
	ContentID string `json:"content_id,omitempty"`
}

// Draft is a locally authored, not yet sent message. A draft occupies exactly
// one slot identified by DraftID; autosave replaces, it never duplicates.
type Draft struct {
	DraftID            string       `json:"draft_id"`
	AccountID          string       `json:"account_id"`
	ToAddresses        []string     `json:"to_addresses,omitempty"`
	CCAddresses        []string     `json:"cc_addresses,omitempty"`
	BCCAddresses       []string     `json:"bcc_addresses,omitempty"`
	Subject            string       `json:"subject"`
	BodyText           string       `json:"body_text"`
	BodyHTML           string       `json:"body_html,omitempty"`
	InReplyTo          string       `json:"in_reply_to,omitempty"`
	References         []string     `json:"references,omitempty"`
	PendingAttachments []Attachment `json:"pending_attachments,omitempty"`
	LastSaved          time.Time    `json:"last_saved"`
}

// Account holds the remote endpoints for one mailbox account. Passwords are
// stored encrypted and decrypted only when a connection is opened.
type Account struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	IMAPHost              string `json:"imap_host"`
	IMAPPort              int    `json:"imap_port"`
	IMAPUsername          string `json:"imap_username"`
	EncryptedIMAPPassword []byte `json:"encrypted_imap_password"`
	SMTPHost              string `json:"smtp_host"`
	SMTPPort              int    `json:"smtp_port"`
	SMTPUsername          string `json:"smtp_username"`
	EncryptedSMTPPassword []byte `json:"encrypted_smtp_password"`
}
