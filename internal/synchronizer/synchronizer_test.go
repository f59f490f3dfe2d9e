package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolarite/mailsync/internal/models"
	"github.com/scolarite/mailsync/internal/protocol"
	"github.com/scolarite/mailsync/internal/testutil"
)

type fakeDirectory struct {
	users map[string]models.Principal
}

func (d *fakeDirectory) GetUser(_ context.Context, principalID string) (models.Principal, error) {
	p, ok := d.users[principalID]
	if !ok {
		return models.Principal{}, fmt.Errorf("principal %s not found", principalID)
	}
	return p, nil
}

type fakeRecords struct {
	mu       sync.Mutex
	pending  []models.ModificationRecord
	statuses map[int64]models.RecordStatus
	setErr   error
	claimErr error
}

func newFakeRecords(pending ...models.ModificationRecord) *fakeRecords {
	return &fakeRecords{pending: pending, statuses: make(map[int64]models.RecordStatus)}
}

func (r *fakeRecords) ClaimPending(_ context.Context, limit int) ([]models.ModificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeRecords) SetStatus(_ context.Context, id int64, status models.RecordStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return r.setErr
	}
	r.statuses[id] = status
	return nil
}

func (r *fakeRecords) statusOf(id int64) models.RecordStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[id]
}

func newTestSynchronizer(t *testing.T, records *fakeRecords, users ...models.Principal) (*Synchronizer, *testutil.FakeRemote) {
	t.Helper()
	fake := testutil.NewFakeRemote(t)
	client := protocol.NewClient(fake.URL(), testutil.FakeAdminAccount, testutil.FakeAdminPassword)

	dir := &fakeDirectory{users: make(map[string]models.Principal)}
	for _, u := range users {
		dir.users[u.ID] = u
	}

	return New(client, dir, records, "example.net", 50, 100), fake
}

func jdoe() models.Principal {
	return models.Principal{
		ID:        "u-1",
		UnitID:    "unit-1",
		Login:     "jdoe",
		LastName:  "Doe",
		FirstName: "Jane",
		Profile:   models.ProfileTeacher,
	}
}

func TestProcessRecordCreate(t *testing.T) {
	records := newFakeRecords()
	syncer, fake := newTestSynchronizer(t, records, jdoe())

	rec := models.ModificationRecord{ID: 1, PrincipalID: "u-1", Kind: models.ModificationCreate}
	require.NoError(t, syncer.ProcessRecord(context.Background(), rec))

	account, ok := fake.Account("jdoe@example.net")
	require.True(t, ok)
	assert.Equal(t, "Doe, Jane", account.Attrs["displayName"])
	assert.Equal(t, "Jane", account.Attrs["givenName"])
	assert.Equal(t, "Doe", account.Attrs["sn"])
	assert.Equal(t, "active", account.Attrs["accountStatus"])
	// The canonical address is registered as an alias even without a
	// collision, so delivery never depends on which name won.
	assert.Contains(t, account.Aliases, "jdoe@example.net")

	assert.Equal(t, models.RecordDone, records.statusOf(1))
}

func TestProcessRecordCreateWithCollisions(t *testing.T) {
	tests := []struct {
		name       string
		collisions int
		expected   string
	}{
		{"one collision", 1, "jdoe-1@example.net"},
		{"five collisions", 5, "jdoe-5@example.net"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := newFakeRecords()
			syncer, fake := newTestSynchronizer(t, records, jdoe())

			fake.SeedAccount("jdoe@example.net")
			for i := 1; i < tt.collisions; i++ {
				fake.SeedAccount(fmt.Sprintf("jdoe-%d@example.net", i))
			}

			rec := models.ModificationRecord{ID: 1, PrincipalID: "u-1", Kind: models.ModificationCreate}
			require.NoError(t, syncer.ProcessRecord(context.Background(), rec))

			account, ok := fake.Account(tt.expected)
			require.True(t, ok, "expected account %s to exist", tt.expected)
			assert.Contains(t, account.Aliases, "jdoe@example.net")
			assert.Equal(t, models.RecordDone, records.statusOf(1))
		})
	}
}

func TestProcessRecordCreateRetriesExhausted(t *testing.T) {
	records := newFakeRecords()
	fake := testutil.NewFakeRemote(t)
	client := protocol.NewClient(fake.URL(), testutil.FakeAdminAccount, testutil.FakeAdminPassword)
	dir := &fakeDirectory{users: map[string]models.Principal{"u-1": jdoe()}}
	syncer := New(client, dir, records, "example.net", 2, 100)

	fake.SeedAccount("jdoe@example.net")
	fake.SeedAccount("jdoe-1@example.net")
	fake.SeedAccount("jdoe-2@example.net")

	rec := models.ModificationRecord{ID: 1, PrincipalID: "u-1", Kind: models.ModificationCreate}
	err := syncer.ProcessRecord(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gave up")
	assert.Contains(t, err.Error(), "jdoe-2@example.net")
	assert.Equal(t, models.RecordError, records.statusOf(1))
}

func TestProcessRecordModify(t *testing.T) {
	records := newFakeRecords()
	principal := jdoe()
	principal.LastName = "Doe-Smith"
	syncer, fake := newTestSynchronizer(t, records, principal)

	fake.SeedAccount("jdoe@example.net")

	rec := models.ModificationRecord{ID: 2, PrincipalID: "u-1", Address: "jdoe@example.net", Kind: models.ModificationModify}
	require.NoError(t, syncer.ProcessRecord(context.Background(), rec))

	account, ok := fake.Account("jdoe@example.net")
	require.True(t, ok)
	assert.Equal(t, "Doe-Smith", account.Attrs["sn"])
	assert.Equal(t, "Doe-Smith, Jane", account.Attrs["displayName"])
	assert.Equal(t, models.RecordDone, records.statusOf(2))
}

func TestProcessRecordModifyRemoteFault(t *testing.T) {
	records := newFakeRecords()
	syncer, fake := newTestSynchronizer(t, records, jdoe())

	fake.SeedAccount("jdoe@example.net")
	fake.FailNextOp("ModifyAccountRequest", "SERVICE_ERROR")

	rec := models.ModificationRecord{ID: 3, PrincipalID: "u-1", Address: "jdoe@example.net", Kind: models.ModificationModify}
	err := syncer.ProcessRecord(context.Background(), rec)
	require.Error(t, err)
	assert.Equal(t, models.RecordError, records.statusOf(3))
}

func TestProcessRecordModifyUnknownAccount(t *testing.T) {
	records := newFakeRecords()
	syncer, _ := newTestSynchronizer(t, records, jdoe())

	rec := models.ModificationRecord{ID: 4, PrincipalID: "u-1", Address: "jdoe@example.net", Kind: models.ModificationModify}
	err := syncer.ProcessRecord(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to resolve remote account")
	assert.Equal(t, models.RecordError, records.statusOf(4))
}

func TestProcessRecordDelete(t *testing.T) {
	records := newFakeRecords()
	// The directory entry is already gone; DELETE must not need it.
	syncer, fake := newTestSynchronizer(t, records)

	fake.SeedAccount("jdoe@example.net")

	rec := models.ModificationRecord{ID: 5, PrincipalID: "u-gone", Address: "jdoe@example.net", Kind: models.ModificationDelete}
	require.NoError(t, syncer.ProcessRecord(context.Background(), rec))

	account, ok := fake.Account("jdoe@example.net")
	require.True(t, ok, "deactivation must not remove the account")
	assert.Equal(t, "locked", account.Attrs["accountStatus"])
	assert.Equal(t, models.RecordDone, records.statusOf(5))
}

func TestProcessRecordUnknownKind(t *testing.T) {
	records := newFakeRecords()
	syncer, fake := newTestSynchronizer(t, records, jdoe())

	rec := models.ModificationRecord{ID: 6, PrincipalID: "u-1", Kind: models.ModificationUnknown}
	err := syncer.ProcessRecord(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown modification kind")
	assert.Equal(t, models.RecordError, records.statusOf(6))

	_, created := fake.Account("jdoe@example.net")
	assert.False(t, created, "an unknown kind must fail before any remote call")
}

func TestProcessRecordPersistFailureIsNotPropagated(t *testing.T) {
	records := newFakeRecords()
	records.setErr = errors.New("db down")
	syncer, fake := newTestSynchronizer(t, records, jdoe())

	rec := models.ModificationRecord{ID: 7, PrincipalID: "u-1", Kind: models.ModificationCreate}
	assert.NoError(t, syncer.ProcessRecord(context.Background(), rec))

	_, ok := fake.Account("jdoe@example.net")
	assert.True(t, ok)
}

func TestProcessPending(t *testing.T) {
	records := newFakeRecords(
		models.ModificationRecord{ID: 1, PrincipalID: "u-1", Kind: models.ModificationCreate},
		models.ModificationRecord{ID: 2, PrincipalID: "u-missing", Address: "ghost@example.net", Kind: models.ModificationModify},
	)
	syncer, fake := newTestSynchronizer(t, records, jdoe())

	err := syncer.ProcessPending(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 modification records failed")

	// The failing record does not block the rest of the batch.
	_, ok := fake.Account("jdoe@example.net")
	assert.True(t, ok)
	assert.Equal(t, models.RecordDone, records.statusOf(1))
	assert.Equal(t, models.RecordError, records.statusOf(2))
}

func TestProcessPendingEmptyBatch(t *testing.T) {
	syncer, _ := newTestSynchronizer(t, newFakeRecords())
	assert.NoError(t, syncer.ProcessPending(context.Background()))
}

func TestProcessPendingClaimError(t *testing.T) {
	records := newFakeRecords()
	records.claimErr = errors.New("db down")
	syncer, _ := newTestSynchronizer(t, records)

	err := syncer.ProcessPending(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim pending")
}

func TestSyncGroupNotImplemented(t *testing.T) {
	syncer, _ := newTestSynchronizer(t, newFakeRecords())
	err := syncer.SyncGroup(context.Background(), models.Group{ID: "g-1"})
	assert.ErrorIs(t, err, ErrGroupSyncNotImplemented)
}
