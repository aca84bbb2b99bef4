package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"rsschool/api/internal/model"
)

const assignmentColumns = `id, course_id, task_id, student_id, mentor_id, deadline_date, status, created_at`

func scanAssignment(row interface{ Scan(...interface{}) error }) (model.Assignment, error) {
	var assignment model.Assignment
	var id, taskID pgtype.UUID
	var courseID pgtype.Text
	var status string
	err := row.Scan(
		&id,
		&courseID,
		&taskID,
		&assignment.StudentID,
		&assignment.MentorID,
		&assignment.DeadlineDate,
		&status,
		&assignment.CreatedAt,
	)
	if err != nil {
		return model.Assignment{}, normalize(err)
	}
	assignment.ID = uuidString(id)
	assignment.CourseID = courseID.String
	assignment.TaskID = uuidString(taskID)
	assignment.Status = model.AssignmentStatus(status)
	assignment.DeadlineDate = utcPtr(assignment.DeadlineDate)
	assignment.CreatedAt = assignment.CreatedAt.UTC()
	return assignment, nil
}

func (q *Queries) CreateAssignment(ctx context.Context, assignment model.Assignment) (model.Assignment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO assignments (id, course_id, task_id, student_id, mentor_id, deadline_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+assignmentColumns,
		pgUUIDFromString(assignment.ID),
		courseKey(assignment.CourseID),
		pgUUIDFromString(assignment.TaskID),
		assignment.StudentID,
		assignment.MentorID,
		assignment.DeadlineDate,
		string(assignment.Status),
		assignment.CreatedAt,
	)
	return scanAssignment(row)
}

func (q *Queries) DeleteAssignmentsByTask(ctx context.Context, taskID string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM assignments WHERE task_id = $1`, pgUUIDFromString(taskID))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) ListAssignments(ctx context.Context, courseID, studentID string) ([]model.Assignment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE course_id = $1 AND student_id = $2
		ORDER BY created_at, id
	`, courseID, studentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Assignment, error) {
		return scanAssignment(row)
	})
}
