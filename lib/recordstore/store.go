package recordstore

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"mtuciassist-backend/lib/recordstore/db"
	"mtuciassist-backend/lib/timezone"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Store is the persistence boundary for users, their tracked assignment
// records and the admin-togglable feature flags. Everything else in the
// codebase treats it as an opaque document store keyed by simple filters.
type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

type User struct {
	TelegramID       int64
	TelegramUsername string
	// portal credentials, password is a keychain ciphertext
	MtuciLogin    string
	MtuciPassword string
	Created       time.Time
	Notifications bool

	EducationLevel string
	StudyForm      string
	Faculty        string
	Course         string
	StudyGroup     string
}

func userFromRow(row db.User) User {
	return User{
		TelegramID:       row.TelegramID,
		TelegramUsername: row.TelegramUsername,
		MtuciLogin:       row.MtuciLogin,
		MtuciPassword:    row.MtuciPassword,
		Created:          time.Unix(row.Created, 0),
		Notifications:    row.Notifications,
		EducationLevel:   row.EducationLevel,
		StudyForm:        row.StudyForm,
		Faculty:          row.Faculty,
		Course:           row.Course,
		StudyGroup:       row.StudyGroup,
	}
}

func (s Store) CreateUser(ctx context.Context, user User) error {
	created := user.Created
	if created.IsZero() {
		created = timezone.Now()
	}
	return s.qry.CreateUser(ctx, db.CreateUserParams{
		TelegramID:       user.TelegramID,
		TelegramUsername: user.TelegramUsername,
		MtuciLogin:       user.MtuciLogin,
		MtuciPassword:    user.MtuciPassword,
		Created:          created.Unix(),
	})
}

func (s Store) GetUser(ctx context.Context, telegramID int64) (User, error) {
	row, err := s.qry.GetUser(ctx, telegramID)
	if err != nil {
		return User{}, err
	}
	return userFromRow(row), nil
}

// NotifiableUsers returns the users that opted into background checks.
func (s Store) NotifiableUsers(ctx context.Context) ([]User, error) {
	rows, err := s.qry.ListNotifiableUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]User, len(rows))
	for i, row := range rows {
		users[i] = userFromRow(row)
	}
	return users, nil
}

func (s Store) SetNotifications(ctx context.Context, telegramID int64, enabled bool) error {
	return s.qry.SetUserNotifications(ctx, enabled, telegramID)
}

func (s Store) SetStudyProfile(ctx context.Context, telegramID int64, level, form, faculty, course, group string) error {
	return s.qry.SetUserStudyProfile(ctx, db.SetUserStudyProfileParams{
		EducationLevel: level,
		StudyForm:      form,
		Faculty:        faculty,
		Course:         course,
		StudyGroup:     group,
		TelegramID:     telegramID,
	})
}

type Task struct {
	UserID         int64
	TaskLink       string
	Course         string
	TaskName       string
	OpenDate       string
	DueDate        string
	ResponseStatus string
	GradeStatus    string
	TimeLeft       string
	LastChange     string
	Attachments    string
	LastUpdated    time.Time
}

func taskFromRow(row db.Task) Task {
	return Task{
		UserID:         row.UserID,
		TaskLink:       row.TaskLink,
		Course:         row.Course,
		TaskName:       row.TaskName,
		OpenDate:       row.OpenDate,
		DueDate:        row.DueDate,
		ResponseStatus: row.ResponseStatus,
		GradeStatus:    row.GradeStatus,
		TimeLeft:       row.TimeLeft,
		LastChange:     row.LastChange,
		Attachments:    row.Attachments,
		LastUpdated:    time.Unix(row.LastUpdated, 0),
	}
}

func (s Store) TasksForUser(ctx context.Context, userID int64) ([]Task, error) {
	rows, err := s.qry.GetTasksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, len(rows))
	for i, row := range rows {
		tasks[i] = taskFromRow(row)
	}
	return tasks, nil
}

// BulkUpsertTasks replaces the user's record set with the given records
// in a single transaction, keyed by (user_id, task_link): records are
// upserted and stored links absent from `tasks` are pruned. Re-ingesting
// the same list is idempotent. last_updated never moves backwards.
func (s Store) BulkUpsertTasks(ctx context.Context, userID int64, tasks []Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	keep := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		keep[t.TaskLink] = true
	}
	existing, err := txqry.GetTasksByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, row := range existing {
		if keep[row.TaskLink] {
			continue
		}
		err := txqry.DeleteTask(ctx, userID, row.TaskLink)
		if err != nil {
			return err
		}
	}

	now := timezone.Now()
	for _, t := range tasks {
		lastUpdated := t.LastUpdated
		if lastUpdated.IsZero() {
			lastUpdated = now
		}
		err := txqry.UpsertTask(ctx, db.UpsertTaskParams{
			UserID:         userID,
			TaskLink:       t.TaskLink,
			Course:         t.Course,
			TaskName:       t.TaskName,
			OpenDate:       t.OpenDate,
			DueDate:        t.DueDate,
			ResponseStatus: t.ResponseStatus,
			GradeStatus:    t.GradeStatus,
			TimeLeft:       t.TimeLeft,
			LastChange:     t.LastChange,
			Attachments:    t.Attachments,
			LastUpdated:    lastUpdated.Unix(),
		})
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s Store) UpdateTaskStatus(ctx context.Context, task Task) error {
	return s.qry.UpdateTaskStatus(ctx, db.UpdateTaskStatusParams{
		ResponseStatus: task.ResponseStatus,
		GradeStatus:    task.GradeStatus,
		TimeLeft:       task.TimeLeft,
		LastChange:     task.LastChange,
		LastUpdated:    task.LastUpdated.Unix(),
		UserID:         task.UserID,
		TaskLink:       task.TaskLink,
	})
}

// TrackedCounts reports how many assignment records are tracked in total
// and how many distinct users have at least one.
func (s Store) TrackedCounts(ctx context.Context) (tasks int64, users int64, err error) {
	tasks, err = s.qry.CountTasks(ctx)
	if err != nil {
		return 0, 0, err
	}
	users, err = s.qry.CountUsersWithTasks(ctx)
	if err != nil {
		return 0, 0, err
	}
	return tasks, users, nil
}

// Flags are the admin-togglable knobs. They are re-read every scheduler
// tick so they can be flipped without a restart.
type Flags struct {
	BotEnabled      bool
	MaintenanceMode bool
	CheckInterval   time.Duration
}

const (
	flagBotEnabled      = "bot_enabled"
	flagMaintenanceMode = "maintenance_mode"
	flagIntervalMinutes = "schedule_interval_minutes"
)

const defaultCheckIntervalMinutes = 30

func (s Store) getBoolFlag(ctx context.Context, name string, fallback bool) (bool, error) {
	value, err := s.qry.GetFlag(ctx, name)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return value == "true" || value == "1", nil
}

func (s Store) GetFlags(ctx context.Context) (Flags, error) {
	enabled, err := s.getBoolFlag(ctx, flagBotEnabled, true)
	if err != nil {
		return Flags{}, err
	}
	maintenance, err := s.getBoolFlag(ctx, flagMaintenanceMode, false)
	if err != nil {
		return Flags{}, err
	}

	minutes := int64(defaultCheckIntervalMinutes)
	value, err := s.qry.GetFlag(ctx, flagIntervalMinutes)
	if err != nil && err != sql.ErrNoRows {
		return Flags{}, err
	}
	if err == nil {
		parsed, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr == nil && parsed > 0 {
			minutes = parsed
		}
	}

	return Flags{
		BotEnabled:      enabled,
		MaintenanceMode: maintenance,
		CheckInterval:   time.Duration(minutes) * time.Minute,
	}, nil
}

func (s Store) SetFlags(ctx context.Context, flags Flags) error {
	err := s.qry.SetFlag(ctx, flagBotEnabled, strconv.FormatBool(flags.BotEnabled))
	if err != nil {
		return err
	}
	err = s.qry.SetFlag(ctx, flagMaintenanceMode, strconv.FormatBool(flags.MaintenanceMode))
	if err != nil {
		return err
	}
	minutes := int64(flags.CheckInterval / time.Minute)
	if minutes <= 0 {
		minutes = defaultCheckIntervalMinutes
	}
	return s.qry.SetFlag(ctx, flagIntervalMinutes, strconv.FormatInt(minutes, 10))
}

type CycleStats struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	CheckedUsers   int64
	TrackedTasks   int64
	UsersWithTasks int64
}

func (s Store) RecordCycleStats(ctx context.Context, stats CycleStats) error {
	return s.qry.CreateCycleStat(ctx, db.CreateCycleStatParams{
		ID:              stats.ID,
		StartedAt:       stats.StartedAt.Unix(),
		FinishedAt:      stats.FinishedAt.Unix(),
		DurationSeconds: stats.FinishedAt.Sub(stats.StartedAt).Seconds(),
		CheckedUsers:    stats.CheckedUsers,
		TrackedTasks:    stats.TrackedTasks,
		UsersWithTasks:  stats.UsersWithTasks,
	})
}
