// Package directory loads point-in-time snapshots of an organizational
// unit from the authoritative directory store.
package directory

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/scolarite/mailsync/internal/models"
)

// Store is the narrow directory query interface. Implementations return an
// empty list, not an error, when a unit legitimately has no members.
type Store interface {
	GetAllUsersFromUnit(ctx context.Context, unitID string) ([]models.Principal, error)
	GetAllGroupsFromUnit(ctx context.Context, unitID string) ([]models.Group, error)
}

// Snapshot is the loaded directory state for one organizational unit.
// It is immutable once returned; downstream components only read it.
type Snapshot struct {
	UnitID string
	Users  []models.Principal
	Groups []models.Group
}

// Empty reports whether the snapshot contains no principals at all.
func (s *Snapshot) Empty() bool {
	return len(s.Users) == 0 && len(s.Groups) == 0
}

// Loader fetches snapshots from a directory store.
type Loader struct {
	store Store
}

// NewLoader creates a snapshot loader over the given store.
func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// Load fetches the unit's users and groups concurrently. Both fetches must
// succeed; a failure of either fails the whole snapshot, so an incomplete
// folder tree can never be generated from a partial result.
func (l *Loader) Load(ctx context.Context, unitID string) (*Snapshot, error) {
	snapshot := &Snapshot{UnitID: unitID}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		users, err := l.store.GetAllUsersFromUnit(ctx, unitID)
		if err != nil {
			return fmt.Errorf("failed to load users for unit %s: %w", unitID, err)
		}
		snapshot.Users = users
		return nil
	})
	grp.Go(func() error {
		groups, err := l.store.GetAllGroupsFromUnit(ctx, unitID)
		if err != nil {
			return fmt.Errorf("failed to load groups for unit %s: %w", unitID, err)
		}
		snapshot.Groups = groups
		return nil
	})

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
