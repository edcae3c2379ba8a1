package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type User struct {
	TelegramID       int64
	TelegramUsername string
	MtuciLogin       string
	MtuciPassword    string
	Created          int64
	Notifications    bool
	EducationLevel   string
	StudyForm        string
	Faculty          string
	Course           string
	StudyGroup       string
}

const createUser = `
INSERT INTO users (telegram_id, telegram_username, mtuci_login, mtuci_password, created)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (telegram_id) DO UPDATE SET
    telegram_username = excluded.telegram_username,
    mtuci_login = excluded.mtuci_login,
    mtuci_password = excluded.mtuci_password
`

type CreateUserParams struct {
	TelegramID       int64
	TelegramUsername string
	MtuciLogin       string
	MtuciPassword    string
	Created          int64
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser,
		arg.TelegramID,
		arg.TelegramUsername,
		arg.MtuciLogin,
		arg.MtuciPassword,
		arg.Created,
	)
	return err
}

const getUser = `
SELECT telegram_id, telegram_username, mtuci_login, mtuci_password, created,
    notifications, education_level, study_form, faculty, course, study_group
FROM users WHERE telegram_id = ?
`

func (q *Queries) GetUser(ctx context.Context, telegramID int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, telegramID)
	var u User
	err := row.Scan(
		&u.TelegramID,
		&u.TelegramUsername,
		&u.MtuciLogin,
		&u.MtuciPassword,
		&u.Created,
		&u.Notifications,
		&u.EducationLevel,
		&u.StudyForm,
		&u.Faculty,
		&u.Course,
		&u.StudyGroup,
	)
	return u, err
}

const listNotifiableUsers = `
SELECT telegram_id, telegram_username, mtuci_login, mtuci_password, created,
    notifications, education_level, study_form, faculty, course, study_group
FROM users WHERE notifications = 1
`

func (q *Queries) ListNotifiableUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listNotifiableUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		err := rows.Scan(
			&u.TelegramID,
			&u.TelegramUsername,
			&u.MtuciLogin,
			&u.MtuciPassword,
			&u.Created,
			&u.Notifications,
			&u.EducationLevel,
			&u.StudyForm,
			&u.Faculty,
			&u.Course,
			&u.StudyGroup,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const setUserNotifications = `
UPDATE users SET notifications = ? WHERE telegram_id = ?
`

func (q *Queries) SetUserNotifications(ctx context.Context, notifications bool, telegramID int64) error {
	_, err := q.db.ExecContext(ctx, setUserNotifications, notifications, telegramID)
	return err
}

const setUserStudyProfile = `
UPDATE users SET education_level = ?, study_form = ?, faculty = ?, course = ?, study_group = ?
WHERE telegram_id = ?
`

type SetUserStudyProfileParams struct {
	EducationLevel string
	StudyForm      string
	Faculty        string
	Course         string
	StudyGroup     string
	TelegramID     int64
}

func (q *Queries) SetUserStudyProfile(ctx context.Context, arg SetUserStudyProfileParams) error {
	_, err := q.db.ExecContext(ctx, setUserStudyProfile,
		arg.EducationLevel,
		arg.StudyForm,
		arg.Faculty,
		arg.Course,
		arg.StudyGroup,
		arg.TelegramID,
	)
	return err
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
	LastUpdated    int64
}

const upsertTask = `
INSERT INTO tasks (user_id, task_link, course, task_name, open_date, due_date,
    response_status, grade_status, time_left, last_change, attachments, last_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, task_link) DO UPDATE SET
    course = excluded.course,
    task_name = excluded.task_name,
    open_date = excluded.open_date,
    due_date = excluded.due_date,
    response_status = excluded.response_status,
    grade_status = excluded.grade_status,
    time_left = excluded.time_left,
    last_change = excluded.last_change,
    attachments = excluded.attachments,
    last_updated = MAX(tasks.last_updated, excluded.last_updated)
`

type UpsertTaskParams struct {
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
	LastUpdated    int64
}

func (q *Queries) UpsertTask(ctx context.Context, arg UpsertTaskParams) error {
	_, err := q.db.ExecContext(ctx, upsertTask,
		arg.UserID,
		arg.TaskLink,
		arg.Course,
		arg.TaskName,
		arg.OpenDate,
		arg.DueDate,
		arg.ResponseStatus,
		arg.GradeStatus,
		arg.TimeLeft,
		arg.LastChange,
		arg.Attachments,
		arg.LastUpdated,
	)
	return err
}

const getTasksByUser = `
SELECT user_id, task_link, course, task_name, open_date, due_date,
    response_status, grade_status, time_left, last_change, attachments, last_updated
FROM tasks WHERE user_id = ?
ORDER BY course, task_name
`

func (q *Queries) GetTasksByUser(ctx context.Context, userID int64) ([]Task, error) {
	rows, err := q.db.QueryContext(ctx, getTasksByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		err := rows.Scan(
			&t.UserID,
			&t.TaskLink,
			&t.Course,
			&t.TaskName,
			&t.OpenDate,
			&t.DueDate,
			&t.ResponseStatus,
			&t.GradeStatus,
			&t.TimeLeft,
			&t.LastChange,
			&t.Attachments,
			&t.LastUpdated,
		)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

const updateTaskStatus = `
UPDATE tasks SET response_status = ?, grade_status = ?, time_left = ?,
    last_change = ?, last_updated = MAX(last_updated, ?)
WHERE user_id = ? AND task_link = ?
`

type UpdateTaskStatusParams struct {
	ResponseStatus string
	GradeStatus    string
	TimeLeft       string
	LastChange     string
	LastUpdated    int64
	UserID         int64
	TaskLink       string
}

func (q *Queries) UpdateTaskStatus(ctx context.Context, arg UpdateTaskStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateTaskStatus,
		arg.ResponseStatus,
		arg.GradeStatus,
		arg.TimeLeft,
		arg.LastChange,
		arg.LastUpdated,
		arg.UserID,
		arg.TaskLink,
	)
	return err
}

const deleteTask = `
DELETE FROM tasks WHERE user_id = ? AND task_link = ?
`

func (q *Queries) DeleteTask(ctx context.Context, userID int64, taskLink string) error {
	_, err := q.db.ExecContext(ctx, deleteTask, userID, taskLink)
	return err
}

const countTasks = `
SELECT COUNT(*) FROM tasks
`

func (q *Queries) CountTasks(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTasks)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countUsersWithTasks = `
SELECT COUNT(DISTINCT user_id) FROM tasks
`

func (q *Queries) CountUsersWithTasks(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUsersWithTasks)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getFlag = `
SELECT value FROM flags WHERE name = ?
`

func (q *Queries) GetFlag(ctx context.Context, name string) (string, error) {
	row := q.db.QueryRowContext(ctx, getFlag, name)
	var value string
	err := row.Scan(&value)
	return value, err
}

const setFlag = `
INSERT INTO flags (name, value) VALUES (?, ?)
ON CONFLICT (name) DO UPDATE SET value = excluded.value
`

func (q *Queries) SetFlag(ctx context.Context, name, value string) error {
	_, err := q.db.ExecContext(ctx, setFlag, name, value)
	return err
}

const createCycleStat = `
INSERT INTO cycle_stats (id, started_at, finished_at, duration_seconds,
    checked_users, tracked_tasks, users_with_tasks)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreateCycleStatParams struct {
	ID              string
	StartedAt       int64
	FinishedAt      int64
	DurationSeconds float64
	CheckedUsers    int64
	TrackedTasks    int64
	UsersWithTasks  int64
}

func (q *Queries) CreateCycleStat(ctx context.Context, arg CreateCycleStatParams) error {
	_, err := q.db.ExecContext(ctx, createCycleStat,
		arg.ID,
		arg.StartedAt,
		arg.FinishedAt,
		arg.DurationSeconds,
		arg.CheckedUsers,
		arg.TrackedTasks,
		arg.UsersWithTasks,
	)
	return err
}
