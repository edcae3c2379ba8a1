package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mtuciassist-backend/lib/recordstore"
	"mtuciassist-backend/lib/scrapers/mtuci/lms"
	"mtuciassist-backend/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ChangeEvent is one detected status change on one assignment.
type ChangeEvent struct {
	Course   string
	TaskName string
	TaskLink string

	ResponseChanged bool
	OldResponse     string
	NewResponse     string

	GradeChanged bool
	OldGrade     string
	NewGrade     string
}

// diffStatus compares the stored record against a fresh read. Only the
// submission and grading states are diffed; dates and remaining time
// churn constantly and would drown users in noise.
func diffStatus(stored recordstore.Task, fresh lms.AssignmentStatus) (ChangeEvent, bool) {
	event := ChangeEvent{
		Course:   stored.Course,
		TaskName: stored.TaskName,
		TaskLink: stored.TaskLink,
	}
	if stored.ResponseStatus != fresh.ResponseStatus {
		event.ResponseChanged = true
		event.OldResponse = stored.ResponseStatus
		event.NewResponse = fresh.ResponseStatus
	}
	if stored.GradeStatus != fresh.GradeStatus {
		event.GradeChanged = true
		event.OldGrade = stored.GradeStatus
		event.NewGrade = fresh.GradeStatus
	}
	return event, event.ResponseChanged || event.GradeChanged
}

// CheckUser re-reads the status of every assignment already on record
// for one user and persists whatever moved. New assignments are not
// discovered here; they only enter the store through Ingest.
func (s Service) CheckUser(ctx context.Context, user recordstore.User) ([]ChangeEvent, error) {
	ctx, span := tracer.Start(ctx, "watcher:CheckUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user", user.TelegramID))

	stored, err := s.store.TasksForUser(ctx, user.TelegramID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}

	password, err := s.keychain.Decrypt(user.MtuciPassword)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential decrypt failed")
		return nil, err
	}

	session, err := s.sessions(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer session.Close(ctx)

	err = session.Login(ctx, user.MtuciLogin, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return nil, err
	}

	var events []ChangeEvent
	for _, task := range stored {
		fresh, err := session.AssignmentStatus(ctx, task.TaskLink)
		if err != nil {
			span.RecordError(err)
			continue
		}

		event, changed := diffStatus(task, fresh)
		if !changed {
			continue
		}

		task.ResponseStatus = fresh.ResponseStatus
		task.GradeStatus = fresh.GradeStatus
		task.TimeLeft = fresh.TimeLeft
		task.LastChange = fresh.LastChange
		task.LastUpdated = timezone.Now()
		err = s.store.UpdateTaskStatus(ctx, task)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "status persist failed")
			// the change is already computed, keep the full old/new
			// pair in the log so it can be recovered by hand
			slog.ErrorContext(ctx, "change event not persisted",
				"user", user.TelegramID,
				"course", event.Course,
				"task", event.TaskName,
				"link", event.TaskLink,
				"old_response", event.OldResponse,
				"new_response", event.NewResponse,
				"old_grade", event.OldGrade,
				"new_grade", event.NewGrade)
			events = append(events, event)
			return events, fmt.Errorf("persist %q: %w", task.TaskLink, err)
		}
		events = append(events, event)
	}

	span.SetAttributes(attribute.Int("change_events", len(events)))
	return events, nil
}

// Ingest scrapes the user's full assignment list and replaces their
// record set. Used on signup and for the interactive task listing.
func (s Service) Ingest(ctx context.Context, user recordstore.User) ([]recordstore.Task, error) {
	ctx, span := tracer.Start(ctx, "watcher:Ingest")
	defer span.End()
	span.SetAttributes(attribute.Int64("user", user.TelegramID))

	password, err := s.keychain.Decrypt(user.MtuciPassword)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	session, err := s.sessions(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer session.Close(ctx)

	err = session.Login(ctx, user.MtuciLogin, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return nil, err
	}

	assignments, err := session.AllAssignments(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tasks := make([]recordstore.Task, len(assignments))
	for i, a := range assignments {
		tasks[i] = recordstore.Task{
			UserID:         user.TelegramID,
			TaskLink:       a.TaskLink,
			Course:         a.Course,
			TaskName:       a.TaskName,
			OpenDate:       a.OpenDate,
			DueDate:        a.DueDate,
			ResponseStatus: a.ResponseStatus,
			GradeStatus:    a.GradeStatus,
			TimeLeft:       a.TimeLeft,
			LastChange:     a.LastChange,
			Attachments:    strings.Join(a.Attachments, ", "),
		}
	}
	err = s.store.BulkUpsertTasks(ctx, user.TelegramID, tasks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk upsert failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("tasks", len(tasks)))
	return tasks, nil
}
