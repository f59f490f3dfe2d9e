// Package addressbook turns a directory snapshot into the folder tree that
// is pushed to the remote address book. The transform is pure: no remote
// I/O happens here, and running it twice on the same snapshot yields a
// structurally identical tree.
package addressbook

import (
	"errors"

	"github.com/scolarite/mailsync/internal/directory"
	"github.com/scolarite/mailsync/internal/models"
)

// ErrNoAddressBook is returned when a snapshot with principals present
// produced no folders at all. An empty push is never the intended outcome
// of such a run, so it is an error rather than a silent no-op.
var ErrNoAddressBook = errors.New("no address book generated")

// membersKey is the translation key of the fixed sub-folder that staff and
// teacher contacts land in.
const membersKey = "members"

// Translator resolves a profile or folder label to its display name.
// Translation itself is an external collaborator; a nil Translator keeps
// labels as-is.
type Translator func(label string) string

// Builder classifies snapshot entries into a folder tree.
type Builder struct {
	translate Translator
}

// NewBuilder creates a builder using the given translator.
func NewBuilder(translate Translator) *Builder {
	if translate == nil {
		translate = func(label string) string { return label }
	}
	return &Builder{translate: translate}
}

// Build generates the folder tree for one snapshot.
//
// Classification, in priority order:
//  1. guardian and student principals go into one sub-folder per class
//     under their profile folder; a classless one is silently excluded.
//  2. guest principals go directly into the profile folder.
//  3. everyone else (staff, teacher, unrecognized profiles) goes into the
//     fixed "members" sub-folder under their profile folder.
//
// Groups go directly into their profile-derived folder, never subdivided.
func (b *Builder) Build(snapshot *directory.Snapshot) (*Folder, error) {
	root := NewRoot()

	for _, p := range snapshot.Users {
		contact := models.ContactFromPrincipal(p)
		for _, target := range b.classify(p) {
			target.place(root, contact)
		}
	}

	for _, g := range snapshot.Groups {
		folder := root.Sub(b.profileFolderName(g.Profile))
		folder.Add(models.Contact{
			DisplayName: b.translate(g.Name),
			Email:       g.Email,
			UnitID:      g.UnitID,
			Profile:     string(g.Profile),
		})
	}

	if len(root.children) == 0 && !snapshot.Empty() {
		return nil, ErrNoAddressBook
	}
	return root, nil
}

// placement is one target leaf for a contact, as a path under the root.
type placement struct {
	profile string
	sub     string // empty means the profile folder itself
}

func (pl placement) place(root *Folder, c models.Contact) {
	folder := root.Sub(pl.profile)
	if pl.sub != "" {
		folder = folder.Sub(pl.sub)
	}
	folder.Add(c)
}

// classify returns every leaf a principal belongs in. A guardian or
// student with several classes is duplicated across the class sub-folders.
func (b *Builder) classify(p models.Principal) []placement {
	profile := b.profileFolderName(p.Profile)

	switch p.Profile {
	case models.ProfileGuardian, models.ProfileStudent:
		placements := make([]placement, 0, len(p.Classes))
		for _, class := range p.Classes {
			placements = append(placements, placement{profile: profile, sub: class})
		}
		return placements
	case models.ProfileGuest:
		return []placement{{profile: profile}}
	default:
		return []placement{{profile: profile, sub: b.translate(membersKey)}}
	}
}

// profileFolderName resolves the folder label for a profile. Unrecognized
// profiles fall back to the guest folder label while the contact itself
// keeps its original profile string.
func (b *Builder) profileFolderName(p models.Profile) string {
	if !p.Known() {
		return b.translate(string(models.ProfileGuest))
	}
	return b.translate(string(p))
}
