package watcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mtuciassist-backend/lib/keychain"
	"mtuciassist-backend/lib/recordstore"
	"mtuciassist-backend/lib/recordstore/db"
	"mtuciassist-backend/lib/scrapers/mtuci/lms"
	"mtuciassist-backend/lib/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterSecret = "watcher-test-secret"

type fakeSession struct {
	statuses   map[string]lms.AssignmentStatus
	all        []lms.Assignment
	loginErr   error
	delay      time.Duration
	onStatus   func(taskLink string)
	open       *atomic.Int64
	maxOpen    *atomic.Int64
	closedOnce sync.Once
}

func (f *fakeSession) Login(ctx context.Context, username, password string) error {
	return f.loginErr
}

func (f *fakeSession) AllAssignments(ctx context.Context) ([]lms.Assignment, error) {
	return f.all, nil
}

func (f *fakeSession) AssignmentStatus(ctx context.Context, taskLink string) (lms.AssignmentStatus, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.onStatus != nil {
		f.onStatus(taskLink)
	}
	status, ok := f.statuses[taskLink]
	if !ok {
		return lms.AssignmentStatus{}, lms.ErrNoStatusTable
	}
	return status, nil
}

func (f *fakeSession) Close(ctx context.Context) {
	f.closedOnce.Do(func() {
		if f.open != nil {
			f.open.Add(-1)
		}
	})
}

type fakeFactory struct {
	mu       sync.Mutex
	sessions map[int64]*fakeSession
	next     []*fakeSession
	open     atomic.Int64
	maxOpen  atomic.Int64
}

func (f *fakeFactory) factory(ctx context.Context) (PortalSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.next) == 0 {
		return nil, fmt.Errorf("no fake session queued")
	}
	session := f.next[0]
	f.next = f.next[1:]

	session.open = &f.open
	session.maxOpen = &f.maxOpen
	open := f.open.Add(1)
	for {
		max := f.maxOpen.Load()
		if open <= max || f.maxOpen.CompareAndSwap(max, open) {
			break
		}
	}
	return session, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[int64][]ChangeEvent
}

func (n *recordingNotifier) NotifyChanges(ctx context.Context, user recordstore.User, events []ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = map[int64][]ChangeEvent{}
	}
	n.events[user.TelegramID] = append(n.events[user.TelegramID], events...)
	return nil
}

func setupWatcher(t *testing.T, factory SessionFactory, notifier Notifier, maxConcurrent int64) (Service, recordstore.Store, keychain.Keychain) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "watcher",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	store := recordstore.NewStore(setup.DB)
	kc, err := keychain.New(testMasterSecret)
	require.NoError(t, err)

	service := NewService(ServiceOptions{
		Store:                 store,
		Keychain:              kc,
		Notifier:              notifier,
		Sessions:              factory,
		MaxConcurrentSessions: maxConcurrent,
	})
	return service, store, kc
}

func seedUser(t *testing.T, store recordstore.Store, kc keychain.Keychain, id int64, tasks []recordstore.Task) {
	password, err := kc.Encrypt("hunter2")
	require.NoError(t, err)

	err = store.CreateUser(context.Background(), recordstore.User{
		TelegramID:    id,
		MtuciLogin:    fmt.Sprintf("student%d", id),
		MtuciPassword: password,
	})
	require.NoError(t, err)
	err = store.SetNotifications(context.Background(), id, true)
	require.NoError(t, err)

	if len(tasks) > 0 {
		err = store.BulkUpsertTasks(context.Background(), id, tasks)
		require.NoError(t, err)
	}
}

func storedTask(userID int64, link, response, grade string) recordstore.Task {
	return recordstore.Task{
		UserID:         userID,
		TaskLink:       link,
		Course:         "Дискретная математика",
		TaskName:       "Контрольная работа 1",
		OpenDate:       "не указано",
		DueDate:        "12.05.2025 14:00",
		ResponseStatus: response,
		GradeStatus:    grade,
		TimeLeft:       "—",
		LastChange:     "—",
	}
}

func TestCheckUserEmitsOneEventPerChangedTask(t *testing.T) {
	const link = "https://lms.mtuci.ru/lms/mod/assign/view.php?id=501"

	factory := &fakeFactory{next: []*fakeSession{{
		statuses: map[string]lms.AssignmentStatus{
			link: {ResponseStatus: "A", GradeStatus: "C", TimeLeft: "—", LastChange: "—"},
		},
	}}}
	service, store, kc := setupWatcher(t, factory.factory, nil, 1)
	seedUser(t, store, kc, 100, []recordstore.Task{storedTask(100, link, "A", "B")})

	user, err := store.GetUser(context.Background(), 100)
	require.NoError(t, err)

	events, err := service.CheckUser(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.False(t, event.ResponseChanged)
	assert.True(t, event.GradeChanged)
	assert.Equal(t, "B", event.OldGrade)
	assert.Equal(t, "C", event.NewGrade)
	assert.Empty(t, event.OldResponse)
	assert.Empty(t, event.NewResponse)

	// the new status must be persisted
	tasks, err := store.TasksForUser(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "C", tasks[0].GradeStatus)
	assert.Equal(t, "A", tasks[0].ResponseStatus)
}

func TestCheckUserNoChanges(t *testing.T) {
	const link = "https://lms.mtuci.ru/lms/mod/assign/view.php?id=501"

	factory := &fakeFactory{next: []*fakeSession{{
		statuses: map[string]lms.AssignmentStatus{
			link: {ResponseStatus: "A", GradeStatus: "B", TimeLeft: "—", LastChange: "—"},
		},
	}}}
	service, store, kc := setupWatcher(t, factory.factory, nil, 1)
	seedUser(t, store, kc, 100, []recordstore.Task{storedTask(100, link, "A", "B")})

	user, err := store.GetUser(context.Background(), 100)
	require.NoError(t, err)

	events, err := service.CheckUser(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRunCycleConcurrencyBound(t *testing.T) {
	factory := &fakeFactory{}
	for i := 0; i < 10; i++ {
		factory.next = append(factory.next, &fakeSession{
			statuses: map[string]lms.AssignmentStatus{
				"link": {ResponseStatus: "A", GradeStatus: "B"},
			},
			delay: time.Millisecond * 20,
		})
	}

	service, store, kc := setupWatcher(t, factory.factory, nil, 3)
	for i := int64(1); i <= 10; i++ {
		seedUser(t, store, kc, i, []recordstore.Task{storedTask(i, "link", "A", "B")})
	}

	summary, err := service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, summary.CheckedUsers)
	assert.Equal(t, 0, summary.FailedUsers)
	assert.LessOrEqual(t, factory.maxOpen.Load(), int64(3))
	assert.Zero(t, factory.open.Load())
}

func TestRunCycleFailureIsolation(t *testing.T) {
	const link = "https://lms.mtuci.ru/lms/mod/assign/view.php?id=501"
	changed := map[string]lms.AssignmentStatus{
		link: {ResponseStatus: "A", GradeStatus: "C"},
	}

	// user 1 fails authentication, users 2 and 3 proceed
	factory := &fakeFactory{next: []*fakeSession{
		{loginErr: lms.ErrAuthentication},
		{statuses: changed},
		{statuses: changed},
	}}
	notifier := &recordingNotifier{}
	service, store, kc := setupWatcher(t, factory.factory, notifier, 1)
	for i := int64(1); i <= 3; i++ {
		seedUser(t, store, kc, i, []recordstore.Task{storedTask(i, link, "A", "B")})
	}

	summary, err := service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.CheckedUsers)
	assert.Equal(t, 1, summary.FailedUsers)
	assert.Equal(t, 2, summary.ChangeEvents)

	total := 0
	for _, events := range notifier.events {
		total += len(events)
	}
	assert.Equal(t, 2, total)
}

func TestRunCycleDeliversEventsWhenPersistFails(t *testing.T) {
	const link = "https://lms.mtuci.ru/lms/mod/assign/view.php?id=777"

	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "watcher",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)

	store := recordstore.NewStore(setup.DB)
	kc, err := keychain.New(testMasterSecret)
	require.NoError(t, err)

	session := &fakeSession{
		statuses: map[string]lms.AssignmentStatus{
			link: {ResponseStatus: "A", GradeStatus: "C", TimeLeft: "—", LastChange: "—"},
		},
	}
	// the store breaks between the diff and the status write
	session.onStatus = func(string) {
		_, _ = setup.DB.Exec(`DROP TABLE tasks`)
	}
	factory := &fakeFactory{next: []*fakeSession{session}}
	notifier := &recordingNotifier{}

	service := NewService(ServiceOptions{
		Store:    store,
		Keychain: kc,
		Notifier: notifier,
		Sessions: factory.factory,
	})
	seedUser(t, store, kc, 700, []recordstore.Task{storedTask(700, link, "A", "B")})

	summary, err := service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailedUsers)
	assert.Equal(t, 1, summary.ChangeEvents)

	require.Len(t, notifier.events[700], 1)
	event := notifier.events[700][0]
	assert.True(t, event.GradeChanged)
	assert.Equal(t, "B", event.OldGrade)
	assert.Equal(t, "C", event.NewGrade)

	// tracked tasks were counted before the table went away
	var trackedTasks int64
	err = setup.DB.QueryRow(`SELECT tracked_tasks FROM cycle_stats WHERE id = ?`, summary.ID).Scan(&trackedTasks)
	require.NoError(t, err)
	assert.EqualValues(t, 1, trackedTasks)
}

func TestIngestStoresScrapedAssignments(t *testing.T) {
	assignments := []lms.Assignment{
		{
			Course: "Физика", TaskName: "Лабораторная 1",
			TaskLink:       "https://lms.mtuci.ru/lms/mod/assign/view.php?id=600",
			OpenDate:       "01.09.2025 09:00",
			DueDate:        "не указано",
			ResponseStatus: "Ответы на задание еще не представлены",
			GradeStatus:    "—", TimeLeft: "—", LastChange: "—",
			Attachments: []string{"https://lms.mtuci.ru/lms/pluginfile.php/1/a.pdf"},
		},
	}
	factory := &fakeFactory{next: []*fakeSession{{all: assignments}}}
	service, store, kc := setupWatcher(t, factory.factory, nil, 1)
	seedUser(t, store, kc, 7, nil)

	user, err := store.GetUser(context.Background(), 7)
	require.NoError(t, err)

	tasks, err := service.Ingest(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	stored, err := store.TasksForUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Лабораторная 1", stored[0].TaskName)
	assert.Equal(t, "https://lms.mtuci.ru/lms/pluginfile.php/1/a.pdf", stored[0].Attachments)
}
