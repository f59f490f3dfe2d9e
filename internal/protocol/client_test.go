package protocol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolarite/mailsync/internal/models"
	"github.com/scolarite/mailsync/internal/testutil"
)

func newTestClient(t *testing.T) (*Client, *testutil.FakeRemote) {
	t.Helper()
	fake := testutil.NewFakeRemote(t)
	client := NewClient(fake.URL(), testutil.FakeAdminAccount, testutil.FakeAdminPassword)
	return client, fake
}

func TestCreateAndGetAccount(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	id, err := client.CreateAccount(ctx, "jdoe@example.net", "pw", map[string]string{
		"displayName":   "Doe, Jane",
		"accountStatus": "active",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	account, err := client.GetAccountInfo(ctx, "name", "jdoe@example.net")
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)
	assert.Equal(t, "jdoe@example.net", account.Name)
	assert.Equal(t, models.AccountActive, account.Status)
	assert.Equal(t, "Doe, Jane", account.Attrs["displayName"])

	_, seeded := fake.Account("jdoe@example.net")
	assert.True(t, seeded)
}

func TestCreateAccountCollisionFault(t *testing.T) {
	client, fake := newTestClient(t)
	fake.SeedAccount("jdoe@example.net")

	_, err := client.CreateAccount(context.Background(), "jdoe@example.net", "pw", nil)
	require.Error(t, err)
	assert.True(t, IsAccountExists(err))
	assert.True(t, IsFaultCode(err, CodeAccountExists))
	assert.False(t, IsFaultCode(err, CodeNoSuchAccount))
}

func TestGetAccountInfoUnknownAccount(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetAccountInfo(context.Background(), "name", "ghost@example.net")
	require.Error(t, err)
	assert.True(t, IsFaultCode(err, CodeNoSuchAccount))
}

func TestGetAccountInfoResolvesAlias(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	acc := fake.SeedAccount("jdoe-1@example.net")
	require.NoError(t, client.AddAccountAlias(ctx, acc.ID, "jdoe@example.net"))

	account, err := client.GetAccountInfo(ctx, "name", "jdoe@example.net")
	require.NoError(t, err)
	assert.Equal(t, "jdoe-1@example.net", account.Name)
}

func TestSetAccountStatus(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	acc := fake.SeedAccount("jdoe@example.net")
	require.NoError(t, client.SetAccountStatus(ctx, acc.ID, models.AccountLocked))

	stored, ok := fake.Account("jdoe@example.net")
	require.True(t, ok)
	assert.Equal(t, "locked", stored.Attrs["accountStatus"])
}

func TestAdminTokenRefreshedAfterExpiry(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	acc := fake.SeedAccount("jdoe@example.net")
	require.NoError(t, client.ModifyAccount(ctx, acc.ID, map[string]string{"sn": "Doe"}))

	// The cached token is still fresh client-side, so the expiry is only
	// discovered on the next call; it must be refreshed and replayed.
	fake.ExpireAllTokens()
	require.NoError(t, client.ModifyAccount(ctx, acc.ID, map[string]string{"sn": "Doe-Smith"}))

	stored, ok := fake.Account("jdoe@example.net")
	require.True(t, ok)
	assert.Equal(t, "Doe-Smith", stored.Attrs["sn"])
}

func TestDelegatedOperations(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	fake.SeedAccount("user@example.net")
	sess := client.Delegate("user@example.net")

	require.NoError(t, client.RecallMessage(ctx, sess, "msg-1", "sent by mistake"))
	require.NoError(t, client.SendCalendarRequest(ctx, sess, "BEGIN:VCALENDAR"))

	recalls := fake.Recalls()
	require.Len(t, recalls, 1)
	assert.Equal(t, "user@example.net", recalls[0].Account)
	assert.Equal(t, "msg-1", recalls[0].MessageID)
	assert.Equal(t, "sent by mistake", recalls[0].Comment)

	calendars := fake.CalendarRequests()
	require.Len(t, calendars, 1)
	assert.Equal(t, "user@example.net", calendars[0].Account)
	assert.Equal(t, "BEGIN:VCALENDAR", calendars[0].Content)
}

func TestDelegatedTokenRefreshedAfterExpiry(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	fake.SeedAccount("user@example.net")
	sess := client.Delegate("user@example.net")
	require.NoError(t, client.RecallMessage(ctx, sess, "msg-1", ""))

	// Expiring everything forces both the delegated token and the admin
	// token backing its refresh to be re-obtained.
	fake.ExpireAllTokens()
	require.NoError(t, client.RecallMessage(ctx, sess, "msg-2", ""))

	assert.Len(t, fake.Recalls(), 2)
}

func TestDelegateUnknownAccountFails(t *testing.T) {
	client, _ := newTestClient(t)

	sess := client.Delegate("ghost@example.net")
	err := client.RecallMessage(context.Background(), sess, "msg-1", "")
	require.Error(t, err)
	assert.True(t, IsFaultCode(err, CodeNoSuchAccount))
}

func TestBadAdminCredentials(t *testing.T) {
	fake := testutil.NewFakeRemote(t)
	client := NewClient(fake.URL(), testutil.FakeAdminAccount, "wrong-password")

	_, err := client.CreateAccount(context.Background(), "jdoe@example.net", "pw", nil)
	require.Error(t, err)
	assert.True(t, IsFaultCode(err, CodeAuthFailed))
}
