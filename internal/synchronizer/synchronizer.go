// Package synchronizer reconciles pending directory changes against
// accounts on the remote mail server, one modification record at a time.
package synchronizer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/scolarite/mailsync/internal/models"
	"github.com/scolarite/mailsync/internal/protocol"
)

// ErrGroupSyncNotImplemented marks group reconciliation as a capability
// this engine does not have yet. Callers treat it as a skipped step, not a
// failure of the run.
var ErrGroupSyncNotImplemented = errors.New("group synchronization is not implemented")

// RemoteAdmin is the slice of the protocol client the synchronizer uses.
type RemoteAdmin interface {
	CreateAccount(ctx context.Context, name, password string, attrs map[string]string) (string, error)
	ModifyAccount(ctx context.Context, accountID string, attrs map[string]string) error
	GetAccountInfo(ctx context.Context, by, value string) (*models.RemoteAccount, error)
	AddAccountAlias(ctx context.Context, accountID, alias string) error
	SetAccountStatus(ctx context.Context, accountID string, status models.AccountStatus) error
}

// DirectoryReader loads the current directory state of one principal.
type DirectoryReader interface {
	GetUser(ctx context.Context, principalID string) (models.Principal, error)
}

// ModificationStore claims and advances modification records.
type ModificationStore interface {
	ClaimPending(ctx context.Context, limit int) ([]models.ModificationRecord, error)
	SetStatus(ctx context.Context, id int64, status models.RecordStatus) error
}

// Synchronizer drives the per-record state machine:
// load directory data, resolve the remote id, apply the change, persist
// the outcome. Steps run strictly in that order; reconciliation is
// idempotent per principal, so records need no mutual ordering.
type Synchronizer struct {
	remote    RemoteAdmin
	directory DirectoryReader
	records   ModificationStore

	domain              string
	maxCollisionRetries int
	batchSize           int
}

// New creates a synchronizer. maxCollisionRetries bounds the CREATE
// suffix-retry loop; batchSize bounds one ProcessPending pass.
func New(remote RemoteAdmin, directory DirectoryReader, records ModificationStore, domain string, maxCollisionRetries, batchSize int) *Synchronizer {
	return &Synchronizer{
		remote:              remote,
		directory:           directory,
		records:             records,
		domain:              domain,
		maxCollisionRetries: maxCollisionRetries,
		batchSize:           batchSize,
	}
}

// ProcessPending claims up to batchSize TODO records and processes each.
// Per-record failures are logged and persisted on the record; the batch
// result is a single success/failure indicator.
func (s *Synchronizer) ProcessPending(ctx context.Context) error {
	records, err := s.records.ClaimPending(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending modification records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	failed := 0
	for _, rec := range records {
		if err := s.ProcessRecord(ctx, rec); err != nil {
			failed++
			log.Printf("sync: record %d (%s for principal %s) failed: %v", rec.ID, rec.Kind, rec.PrincipalID, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d modification records failed", failed, len(records))
	}
	return nil
}

// ProcessRecord runs one record through the state machine and persists the
// terminal status. Status persistence is best-effort: a persistence
// failure after the remote step is logged, never propagated, so a
// succeeded remote change is not reported as failed.
func (s *Synchronizer) ProcessRecord(ctx context.Context, rec models.ModificationRecord) error {
	err := s.apply(ctx, rec)

	final := models.RecordDone
	if err != nil {
		final = models.RecordError
	}
	if perr := s.records.SetStatus(ctx, rec.ID, final); perr != nil {
		log.Printf("sync: failed to persist status %s for record %d: %v", final, rec.ID, perr)
	}
	return err
}

func (s *Synchronizer) apply(ctx context.Context, rec models.ModificationRecord) error {
	// LoadingDirectoryData: skipped for DELETE, whose directory entry may
	// already be gone. An unknown kind is a configuration defect and fails
	// before any remote call.
	var principal models.Principal
	switch rec.Kind {
	case models.ModificationCreate, models.ModificationModify:
		p, err := s.directory.GetUser(ctx, rec.PrincipalID)
		if err != nil {
			return fmt.Errorf("failed to load directory data for principal %s: %w", rec.PrincipalID, err)
		}
		principal = p
	case models.ModificationDelete:
	default:
		return fmt.Errorf("record %d carries unknown modification kind %d", rec.ID, int(rec.Kind))
	}

	address := rec.Address
	if address == "" {
		address = s.canonicalAddress(principal.Login)
	}

	// ResolvingRemoteId: only MODIFY and DELETE act on an existing
	// account; for CREATE the id is unknown until creation succeeds.
	var accountID string
	switch rec.Kind {
	case models.ModificationModify, models.ModificationDelete:
		account, err := s.remote.GetAccountInfo(ctx, "name", address)
		if err != nil {
			return fmt.Errorf("failed to resolve remote account for %s: %w", address, err)
		}
		accountID = account.ID
	}

	// ApplyingChange
	switch rec.Kind {
	case models.ModificationCreate:
		return s.createWithCollisionRetry(ctx, principal)
	case models.ModificationModify:
		if err := s.remote.ModifyAccount(ctx, accountID, accountAttrs(principal)); err != nil {
			return fmt.Errorf("failed to modify account %s: %w", address, err)
		}
		return nil
	default: // ModificationDelete, the only kind left
		if err := s.remote.SetAccountStatus(ctx, accountID, models.AccountLocked); err != nil {
			return fmt.Errorf("failed to deactivate account %s: %w", address, err)
		}
		return nil
	}
}

// createWithCollisionRetry attempts creation under the canonical login,
// then under login-1, login-2, ... when the server reports a naming
// collision. The canonical address is added as an alias of whichever name
// succeeded, so mail sent to the unmodified address is delivered.
func (s *Synchronizer) createWithCollisionRetry(ctx context.Context, p models.Principal) error {
	canonical := s.canonicalAddress(p.Login)
	password := generatePassword()
	attrs := accountAttrs(p)

	name := canonical
	for attempt := 0; attempt <= s.maxCollisionRetries; attempt++ {
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d@%s", p.Login, attempt, s.domain)
		}

		accountID, err := s.remote.CreateAccount(ctx, name, password, attrs)
		if protocol.IsAccountExists(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create account %s: %w", name, err)
		}

		if attempt > 0 {
			log.Printf("sync: created %s for principal %s after %d collisions", name, p.ID, attempt)
		}
		if err := s.remote.AddAccountAlias(ctx, accountID, canonical); err != nil {
			return fmt.Errorf("account %s created but alias %s could not be added: %w", name, canonical, err)
		}
		return nil
	}
	return fmt.Errorf("gave up creating an account for %s after %d name collisions (last tried %s)", p.ID, s.maxCollisionRetries, name)
}

// SyncGroup is the group reconciliation entry point. The capability does
// not exist yet; the method is here so callers bind to a stable interface.
func (s *Synchronizer) SyncGroup(_ context.Context, _ models.Group) error {
	return ErrGroupSyncNotImplemented
}

func (s *Synchronizer) canonicalAddress(login string) string {
	return login + "@" + s.domain
}

// accountAttrs is the full attribute set pushed on CREATE and MODIFY.
func accountAttrs(p models.Principal) map[string]string {
	contact := models.ContactFromPrincipal(p)
	return map[string]string{
		"displayName":   contact.DisplayName,
		"givenName":     p.FirstName,
		"sn":            p.LastName,
		"accountStatus": string(models.AccountActive),
	}
}

// generatePassword produces the random initial password of a new account.
// Users never see it; real authentication happens upstream of the mail
// server.
func generatePassword() string {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand does not fail on supported platforms
	}
	return base64.URLEncoding.EncodeToString(buf)
}
