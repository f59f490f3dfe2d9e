package db_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolarite/mailsync/internal/db"
	"github.com/scolarite/mailsync/internal/models"
	"github.com/scolarite/mailsync/internal/testutil"
)

func TestDirectoryStore(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO units (id, name) VALUES ('unit-1', 'Main campus'), ('unit-2', 'Annex')`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, unit_id, login, last_name, first_name, email, profile, classes)
		VALUES
			('u-1', 'unit-1', 'jdoe', 'Doe', 'Jane', 'jdoe@example.net', 'teacher', '{}'),
			('u-2', 'unit-1', 'inagy', 'Nagy', 'Ilona', 'inagy@example.net', 'guardian', '{"5A","5B"}'),
			('u-3', 'unit-2', 'pkiss', 'Kiss', 'Pál', 'pkiss@example.net', 'student', '{"1A"}')
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO groups (id, unit_id, name, email, profile)
		VALUES ('g-1', 'unit-1', '5A parents', '5a-parents@example.net', 'guardian')
	`)
	require.NoError(t, err)

	store := db.NewDirectoryStore(pool)

	units, err := store.ListUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"unit-1", "unit-2"}, units)

	users, err := store.GetAllUsersFromUnit(ctx, "unit-1")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "jdoe", users[0].Login)
	assert.Equal(t, models.ProfileGuardian, users[1].Profile)
	assert.Equal(t, []string{"5A", "5B"}, users[1].Classes)

	groups, err := store.GetAllGroupsFromUnit(ctx, "unit-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "5A parents", groups[0].Name)

	empty, err := store.GetAllUsersFromUnit(ctx, "unit-404")
	require.NoError(t, err)
	assert.Empty(t, empty)

	user, err := store.GetUser(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, "Nagy", user.LastName)

	_, err = store.GetUser(ctx, "u-404")
	assert.ErrorIs(t, err, db.ErrUserNotFound)
}

func TestModificationStoreClaimAndAdvance(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	store := db.NewModificationStore(pool)

	id1, err := store.Insert(ctx, models.ModificationRecord{
		PrincipalID: "u-1", UnitID: "unit-1", Address: "jdoe@example.net", Kind: models.ModificationCreate,
	})
	require.NoError(t, err)
	id2, err := store.Insert(ctx, models.ModificationRecord{
		PrincipalID: "u-2", UnitID: "unit-1", Address: "inagy@example.net", Kind: models.ModificationDelete,
	})
	require.NoError(t, err)

	claimed, err := store.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, id1, claimed[0].ID)
	assert.Equal(t, models.ModificationCreate, claimed[0].Kind)
	assert.Equal(t, models.RecordInProgress, claimed[0].Status)
	assert.Equal(t, "inagy@example.net", claimed[1].Address)

	// Claimed records are no longer TODO, so a second pass sees nothing.
	again, err := store.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, store.SetStatus(ctx, id1, models.RecordDone))
	require.NoError(t, store.SetStatus(ctx, id2, models.RecordError))

	var status string
	require.NoError(t, pool.QueryRow(ctx, `SELECT status FROM modifications WHERE id = $1`, id2).Scan(&status))
	assert.Equal(t, "ERROR", status)
}

func TestModificationStoreClaimLimit(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	store := db.NewModificationStore(pool)
	for i := 0; i < 3; i++ {
		_, err := store.Insert(ctx, models.ModificationRecord{
			PrincipalID: "u-1", UnitID: "unit-1", Kind: models.ModificationModify,
		})
		require.NoError(t, err)
	}

	first, err := store.ClaimPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	rest, err := store.ClaimPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestTaskStore(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	store := db.NewTaskStore(pool)

	action := &models.Action{UserID: "u-1", Type: models.ActionRecallMail, Approved: true}
	require.NoError(t, store.CreateAction(ctx, action))
	assert.NotEmpty(t, action.ID)

	payload, err := json.Marshal(models.RecallPayload{
		RecipientAddress: "recipient@example.net",
		MessageID:        "msg-1",
	})
	require.NoError(t, err)

	task, err := store.CreateTask(ctx, action, models.Task{
		Kind:    models.TaskKindRecallMail,
		Status:  models.TaskTodo,
		Payload: payload,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, action.ID, task.ActionID)
	require.Len(t, action.Tasks, 1)

	// A task of another kind must not surface in the recall queue.
	_, err = store.CreateTask(ctx, action, models.Task{
		Kind:    models.TaskKindCalendarRequest,
		Status:  models.TaskTodo,
		Payload: json.RawMessage(`{"requester_address":"a@example.net","body":"x"}`),
	})
	require.NoError(t, err)

	pending, err := store.RetrieveTasks(ctx, models.TaskKindRecallMail, models.TaskTodo, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, task.ID, pending[0].ID)

	decoded, err := pending[0].RecallPayload()
	require.NoError(t, err)
	assert.Equal(t, "msg-1", decoded.MessageID)

	require.NoError(t, store.EditTaskStatus(ctx, task, models.TaskDone))

	pending, err = store.RetrieveTasks(ctx, models.TaskKindRecallMail, models.TaskTodo, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	done, err := store.RetrieveTasks(ctx, models.TaskKindRecallMail, models.TaskDone, 10)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}
