package recordstore

import (
	"context"
	"testing"
	"time"

	"mtuciassist-backend/lib/recordstore/db"
	"mtuciassist-backend/lib/testutil"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) (Store, func()) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "lib/recordstore",
		DbSchema: db.Schema,
	})
	return NewStore(setup.DB), cleanup
}

func TestUsers(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := store.CreateUser(ctx, User{
		TelegramID:       100,
		TelegramUsername: "student",
		MtuciLogin:       "ivanov",
		MtuciPassword:    "sealed",
	})
	require.NoError(t, err)

	user, err := store.GetUser(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "ivanov", user.MtuciLogin)
	require.False(t, user.Notifications)

	users, err := store.NotifiableUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 0)

	err = store.SetNotifications(ctx, 100, true)
	require.NoError(t, err)

	users, err = store.NotifiableUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, int64(100), users[0].TelegramID)
}

func TestBulkUpsertIsIdempotent(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	tasks := []Task{
		{
			TaskLink:       "https://lms.mtuci.ru/mod/assign/view.php?id=1",
			Course:         "Физика",
			TaskName:       "Лабораторная 1",
			OpenDate:       "не указано",
			DueDate:        "не указано",
			ResponseStatus: "Отправлено для оценивания",
			GradeStatus:    "Не оценено",
		},
		{
			TaskLink:    "https://lms.mtuci.ru/mod/assign/view.php?id=2",
			Course:      "Физика",
			TaskName:    "Лабораторная 2",
			GradeStatus: "—",
		},
	}

	err := store.BulkUpsertTasks(ctx, 100, tasks)
	require.NoError(t, err)
	err = store.BulkUpsertTasks(ctx, 100, tasks)
	require.NoError(t, err)

	stored, err := store.TasksForUser(ctx, 100)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	// the same link for a different user is a distinct record
	err = store.BulkUpsertTasks(ctx, 200, tasks[:1])
	require.NoError(t, err)

	total, withTasks, err := store.TrackedCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Equal(t, int64(2), withTasks)
}

func TestBulkUpsertPrunesStaleRecords(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := store.BulkUpsertTasks(ctx, 1, []Task{
		{TaskLink: "a", TaskName: "первое"},
		{TaskLink: "b", TaskName: "второе"},
	})
	require.NoError(t, err)

	// a re-ingest without "b" means the assignment was removed upstream
	err = store.BulkUpsertTasks(ctx, 1, []Task{{TaskLink: "a", TaskName: "первое"}})
	require.NoError(t, err)

	stored, err := store.TasksForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "a", stored[0].TaskLink)
}

func TestLastUpdatedIsMonotonic(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	link := "https://lms.mtuci.ru/mod/assign/view.php?id=7"
	newer := time.Now()
	older := newer.Add(-time.Hour)

	err := store.BulkUpsertTasks(ctx, 1, []Task{{TaskLink: link, LastUpdated: newer}})
	require.NoError(t, err)

	err = store.BulkUpsertTasks(ctx, 1, []Task{{TaskLink: link, LastUpdated: older}})
	require.NoError(t, err)

	stored, err := store.TasksForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, newer.Unix(), stored[0].LastUpdated.Unix())
}

func TestFlagsDefaults(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	flags, err := store.GetFlags(ctx)
	require.NoError(t, err)
	require.True(t, flags.BotEnabled)
	require.False(t, flags.MaintenanceMode)
	require.Equal(t, 30*time.Minute, flags.CheckInterval)

	flags.MaintenanceMode = true
	flags.CheckInterval = 10 * time.Minute
	err = store.SetFlags(ctx, flags)
	require.NoError(t, err)

	flags, err = store.GetFlags(ctx)
	require.NoError(t, err)
	require.True(t, flags.MaintenanceMode)
	require.Equal(t, 10*time.Minute, flags.CheckInterval)
}
