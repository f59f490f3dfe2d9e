package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scolarite/mailsync/internal/addressbook"
	"github.com/scolarite/mailsync/internal/directory"
)

// AddressBookPusher is the remote-side address-book synchronizer boundary:
// it receives a finished folder tree and applies it to the remote address
// book. Building the tree and pushing it are separate steps by contract.
type AddressBookPusher interface {
	Push(ctx context.Context, unitID string, root *addressbook.Folder) error
}

// UnitLister enumerates the organizational units a cycle covers.
type UnitLister interface {
	ListUnits(ctx context.Context) ([]string, error)
}

// UnitSyncer runs the address-book half of a synchronization cycle: load
// a unit snapshot, build the folder tree, hand it to the pusher.
type UnitSyncer struct {
	loader  *directory.Loader
	builder *addressbook.Builder
	pusher  AddressBookPusher
	units   UnitLister
}

// NewUnitSyncer wires a unit syncer. pusher may be nil, in which case the
// tree is built (validating the snapshot) but not pushed.
func NewUnitSyncer(loader *directory.Loader, builder *addressbook.Builder, pusher AddressBookPusher, units UnitLister) *UnitSyncer {
	return &UnitSyncer{loader: loader, builder: builder, pusher: pusher, units: units}
}

// SyncUnit regenerates and pushes one unit's address book. A unit with no
// principals is a no-op; a unit whose principals produced no folders is an
// error (addressbook.ErrNoAddressBook).
func (u *UnitSyncer) SyncUnit(ctx context.Context, unitID string) error {
	snapshot, err := u.loader.Load(ctx, unitID)
	if err != nil {
		return err
	}
	if snapshot.Empty() {
		log.Printf("sync: unit %s has no principals, skipping address book", unitID)
		return nil
	}

	root, err := u.builder.Build(snapshot)
	if err != nil {
		return fmt.Errorf("unit %s: %w", unitID, err)
	}

	if u.pusher == nil {
		return nil
	}
	if err := u.pusher.Push(ctx, unitID, root); err != nil {
		return fmt.Errorf("failed to push address book for unit %s: %w", unitID, err)
	}
	return nil
}

// SyncAllUnits runs SyncUnit for every known unit. Units fail
// independently; the cycle reports a single aggregated error.
func (u *UnitSyncer) SyncAllUnits(ctx context.Context) error {
	unitIDs, err := u.units.ListUnits(ctx)
	if err != nil {
		return fmt.Errorf("failed to list units: %w", err)
	}

	var errs []error
	for _, unitID := range unitIDs {
		if err := u.SyncUnit(ctx, unitID); err != nil {
			log.Printf("sync: address book for unit %s failed: %v", unitID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
