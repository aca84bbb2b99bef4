package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"rsschool/api/internal/model"
	"rsschool/api/internal/store"
)

const eventColumns = `id, course_id, start_date_time, end_date_time, fields, created_at, updated_at`

// scheduleRow is the scan target shared by tasks and sessions.
type scheduleRow struct {
	ID            pgtype.UUID
	CourseID      pgtype.Text
	StartDateTime *time.Time
	EndDateTime   *time.Time
	Fields        []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r scheduleRow) schedule() (model.Schedule, error) {
	fields, err := decodeFields(r.Fields)
	if err != nil {
		return model.Schedule{}, err
	}
	return model.Schedule{
		ID:            uuidString(r.ID),
		CourseID:      r.CourseID.String,
		StartDateTime: utcPtr(r.StartDateTime),
		EndDateTime:   utcPtr(r.EndDateTime),
		Fields:        fields,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}, nil
}

func (q *Queries) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	fields, err := encodeFields(task.Fields)
	if err != nil {
		return model.Task{}, err
	}
	var row scheduleRow
	var author string
	err = q.db.QueryRow(ctx, `
		INSERT INTO tasks (id, author, course_id, start_date_time, end_date_time, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING author, `+eventColumns,
		pgUUIDFromString(task.ID), task.Author, courseKey(task.CourseID), task.StartDateTime, task.EndDateTime, fields, task.CreatedAt, task.UpdatedAt,
	).Scan(&author, &row.ID, &row.CourseID, &row.StartDateTime, &row.EndDateTime, &row.Fields, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return model.Task{}, normalize(err)
	}
	schedule, err := row.schedule()
	if err != nil {
		return model.Task{}, err
	}
	return model.Task{Schedule: schedule, Author: author}, nil
}

func (q *Queries) CreateSession(ctx context.Context, session model.Session) (model.Session, error) {
	fields, err := encodeFields(session.Fields)
	if err != nil {
		return model.Session{}, err
	}
	var row scheduleRow
	err = q.db.QueryRow(ctx, `
		INSERT INTO sessions (id, course_id, start_date_time, end_date_time, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+eventColumns,
		pgUUIDFromString(session.ID), courseKey(session.CourseID), session.StartDateTime, session.EndDateTime, fields, session.CreatedAt, session.UpdatedAt,
	).Scan(&row.ID, &row.CourseID, &row.StartDateTime, &row.EndDateTime, &row.Fields, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return model.Session{}, normalize(err)
	}
	schedule, err := row.schedule()
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{Schedule: schedule}, nil
}

// GetEvent looks the id up in sessions and tasks with a single statement.
func (q *Queries) GetEvent(ctx context.Context, id string) (model.Event, error) {
	key := pgUUIDFromString(id)
	if !key.Valid {
		return model.Event{}, store.ErrNotFound
	}
	rows, err := q.db.Query(ctx, `
		SELECT 'session' AS kind, '' AS author, `+eventColumns+`
		FROM sessions
		WHERE id = $1
		UNION ALL
		SELECT 'task' AS kind, author, `+eventColumns+`
		FROM tasks
		WHERE id = $1
	`, key)
	if err != nil {
		return model.Event{}, err
	}
	events, err := scanEvents(rows)
	if err != nil {
		return model.Event{}, err
	}
	switch len(events) {
	case 0:
		return model.Event{}, store.ErrNotFound
	case 1:
		return events[0], nil
	}
	return model.Event{}, store.ErrAmbiguousEvent
}

func (q *Queries) UpdateTask(ctx context.Context, task model.Task) (model.Task, error) {
	fields, err := encodeFields(task.Fields)
	if err != nil {
		return model.Task{}, err
	}
	var row scheduleRow
	var author string
	err = q.db.QueryRow(ctx, `
		UPDATE tasks
		SET author = $2, course_id = $3, start_date_time = $4, end_date_time = $5, fields = $6, updated_at = $7
		WHERE id = $1
		RETURNING author, `+eventColumns,
		pgUUIDFromString(task.ID), task.Author, courseKey(task.CourseID), task.StartDateTime, task.EndDateTime, fields, task.UpdatedAt,
	).Scan(&author, &row.ID, &row.CourseID, &row.StartDateTime, &row.EndDateTime, &row.Fields, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return model.Task{}, normalize(err)
	}
	schedule, err := row.schedule()
	if err != nil {
		return model.Task{}, err
	}
	return model.Task{Schedule: schedule, Author: author}, nil
}

func (q *Queries) UpdateSession(ctx context.Context, session model.Session) (model.Session, error) {
	fields, err := encodeFields(session.Fields)
	if err != nil {
		return model.Session{}, err
	}
	var row scheduleRow
	err = q.db.QueryRow(ctx, `
		UPDATE sessions
		SET course_id = $2, start_date_time = $3, end_date_time = $4, fields = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+eventColumns,
		pgUUIDFromString(session.ID), courseKey(session.CourseID), session.StartDateTime, session.EndDateTime, fields, session.UpdatedAt,
	).Scan(&row.ID, &row.CourseID, &row.StartDateTime, &row.EndDateTime, &row.Fields, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return model.Session{}, normalize(err)
	}
	schedule, err := row.schedule()
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{Schedule: schedule}, nil
}

func (q *Queries) DeleteTask(ctx context.Context, id string) error {
	return q.deleteByID(ctx, `DELETE FROM tasks WHERE id = $1`, id)
}

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	return q.deleteByID(ctx, `DELETE FROM sessions WHERE id = $1`, id)
}

func (q *Queries) deleteByID(ctx context.Context, query, id string) error {
	tag, err := q.db.Exec(ctx, query, pgUUIDFromString(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *Queries) ListCourseEvents(ctx context.Context, courseID string) ([]model.Event, error) {
	rows, err := q.db.Query(ctx, `
		SELECT kind, author, `+eventColumns+`
		FROM (
			SELECT 'session' AS kind, '' AS author, `+eventColumns+` FROM sessions WHERE course_id = $1
			UNION ALL
			SELECT 'task' AS kind, author, `+eventColumns+` FROM tasks WHERE course_id = $1
		) AS course_events
		ORDER BY start_date_time NULLS LAST, created_at, id
	`, courseID)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		var kind, author string
		var row scheduleRow
		if err := rows.Scan(&kind, &author, &row.ID, &row.CourseID, &row.StartDateTime, &row.EndDateTime, &row.Fields, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		schedule, err := row.schedule()
		if err != nil {
			return nil, err
		}
		if model.EventKind(kind) == model.KindTask {
			events = append(events, model.TaskEvent(model.Task{Schedule: schedule, Author: author}))
		} else {
			events = append(events, model.SessionEvent(model.Session{Schedule: schedule}))
		}
	}
	return events, rows.Err()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := t.UTC()
	return &value
}
