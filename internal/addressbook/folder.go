package addressbook

import (
	"sort"

	"github.com/scolarite/mailsync/internal/models"
)

// Folder is a node of the generated address-book tree. Child names are
// unique within a folder; Sub is idempotent by name.
type Folder struct {
	Name     string
	contacts []models.Contact
	children map[string]*Folder
}

// NewRoot creates the root of a folder tree.
func NewRoot() *Folder {
	return newFolder("")
}

func newFolder(name string) *Folder {
	return &Folder{
		Name:     name,
		children: make(map[string]*Folder),
	}
}

// Sub returns the child folder with the given name, creating and
// registering it on first request.
func (f *Folder) Sub(name string) *Folder {
	if child, ok := f.children[name]; ok {
		return child
	}
	child := newFolder(name)
	f.children[name] = child
	return child
}

// Child returns the named child folder, if present.
func (f *Folder) Child(name string) (*Folder, bool) {
	child, ok := f.children[name]
	return child, ok
}

// Children returns the child folders sorted by name.
func (f *Folder) Children() []*Folder {
	names := make([]string, 0, len(f.children))
	for name := range f.children {
		names = append(names, name)
	}
	sort.Strings(names)

	children := make([]*Folder, 0, len(names))
	for _, name := range names {
		children = append(children, f.children[name])
	}
	return children
}

// Add appends a contact to this folder.
func (f *Folder) Add(c models.Contact) {
	f.contacts = append(f.contacts, c)
}

// Contacts returns the folder's contacts ordered by
// (last name, first name, email).
func (f *Folder) Contacts() []models.Contact {
	out := make([]models.Contact, len(f.contacts))
	copy(out, f.contacts)
	sort.Slice(out, func(i, j int) bool {
		return models.LessContact(out[i], out[j])
	})
	return out
}

// Len returns the number of contacts directly in this folder.
func (f *Folder) Len() int {
	return len(f.contacts)
}
