// Package folder maps remote folder descriptors to canonical folders.
package folder

import (
	"strings"

	"github.com/plumemail/plume/internal/models"
	"github.com/plumemail/plume/internal/transport"
)

// specialUseRule maps a name keyword to a canonical role. Rules are checked
// in order and the first match wins, so "Sent Spam" normalizes to sent.
type specialUseRule struct {
	keyword string
	role    models.SpecialUse
	icon    string
}

var specialUseRules = []specialUseRule{
	{"inbox", models.SpecialInbox, "inbox"},
	{"sent", models.SpecialSent, "send"},
	{"draft", models.SpecialDrafts, "file"},
	{"trash", models.SpecialTrash, "trash"},
	{"deleted", models.SpecialTrash, "trash"},
	{"spam", models.SpecialSpam, "alert"},
	{"junk", models.SpecialSpam, "alert"},
	{"archive", models.SpecialArchive, "archive"},
}

// genericIcon is used for folders with no recognized role.
const genericIcon = "folder"

// Normalize converts a remote folder descriptor into a canonical Folder.
// It is a pure function: normalizing the same descriptor twice yields the
// same folder id, so reconciliation can call it on every pass.
func Normalize(accountID string, info transport.FolderInfo) *models.Folder {
	name := strings.TrimSpace(info.Name)
	role, icon := classify(name)

	return &models.Folder{
		ID:         CanonicalID(name),
		AccountID:  accountID,
		Name:       name,
		Delimiter:  info.Delimiter,
		Icon:       icon,
		SpecialUse: role,
	}
}

// CanonicalID derives the folder id from the remote name: lower-cased with
// runs of whitespace collapsed to single spaces.
func CanonicalID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func classify(name string) (models.SpecialUse, string) {
	lower := strings.ToLower(name)
	for _, rule := range specialUseRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.role, rule.icon
		}
	}
	return models.SpecialNone, genericIcon
}
