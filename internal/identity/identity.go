// Package identity derives stable local message ids from remote coordinates.
//
// A synced message's id is a pure function of (account, canonical folder,
// remote UID), so repeated reconciliation passes always resolve a remote item
// to the same cache record. Locally originated messages (drafts, fresh sends)
// carry a random token until the remote confirms placement, at which point
// the record is rekeyed to the canonical id.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// messageNamespace is the fixed UUIDv5 namespace for message ids. Changing it
// would re-key every cached message, so it is a constant for the life of the
// on-disk format.
var messageNamespace = uuid.MustParse("9f4c2f0a-5f6e-4a6b-8c1d-3e7a9b2d4c61")

// MessageID derives the canonical id for a remote message.
// The same (accountID, folderID, uid) triple always yields the same id.
func MessageID(accountID, folderID string, uid int64) string {
	name := fmt.Sprintf("%s\x00%s\x00%d", accountID, folderID, uid)
	return uuid.NewSHA1(messageNamespace, []byte(name)).String()
}

// LocalToken returns a fresh id for a message that has no remote placement
// yet. Tokens are random, so they can never collide with derived ids.
func LocalToken() string {
	return uuid.New().String()
}

// MessageIDHeader generates an RFC 5322 Message-ID for an outgoing message.
// The id travels with the message to the server, which lets the sync engine
// recognize the server's copy of a local send and rekey it in place.
func MessageIDHeader(domain string) string {
	if domain == "" {
		domain = "plume.local"
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
