package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"rsschool/api/internal/model"
	"rsschool/api/internal/store"
)

const courseStudentColumns = `id, course_id, user_id, mentors, created_at`

func scanCourseStudent(row interface{ Scan(...interface{}) error }) (model.CourseStudent, error) {
	var student model.CourseStudent
	var id pgtype.UUID
	if err := row.Scan(&id, &student.CourseID, &student.UserID, &student.Mentors, &student.CreatedAt); err != nil {
		return model.CourseStudent{}, normalize(err)
	}
	student.ID = uuidString(id)
	student.CreatedAt = student.CreatedAt.UTC()
	if student.Mentors == nil {
		student.Mentors = []string{}
	}
	return student, nil
}

// EnsureUser inserts a bare user row unless one exists.
func (q *Queries) EnsureUser(ctx context.Context, userID string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, userID)
	return err
}

// Enroll inserts the enrollment, or returns the existing one for the same
// course and user.
func (q *Queries) Enroll(ctx context.Context, student model.CourseStudent) (model.CourseStudent, error) {
	mentors := student.Mentors
	if mentors == nil {
		mentors = []string{}
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO course_students (id, course_id, user_id, mentors, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (course_id, user_id) DO NOTHING
		RETURNING `+courseStudentColumns,
		pgUUIDFromString(student.ID), student.CourseID, student.UserID, mentors, student.CreatedAt,
	)
	enrolled, err := scanCourseStudent(row)
	if errors.Is(err, store.ErrNotFound) {
		return q.GetCourseStudent(ctx, student.CourseID, student.UserID)
	}
	return enrolled, err
}

func (q *Queries) GetCourseStudent(ctx context.Context, courseID, userID string) (model.CourseStudent, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+courseStudentColumns+`
		FROM course_students
		WHERE course_id = $1 AND user_id = $2
	`, courseID, userID)
	return scanCourseStudent(row)
}

func (q *Queries) SetMentors(ctx context.Context, courseID, userID string, mentors []string) (model.CourseStudent, error) {
	if mentors == nil {
		mentors = []string{}
	}
	row := q.db.QueryRow(ctx, `
		UPDATE course_students
		SET mentors = $3
		WHERE course_id = $1 AND user_id = $2
		RETURNING `+courseStudentColumns,
		courseID, userID, mentors,
	)
	return scanCourseStudent(row)
}

// ListCourseStudents joins each enrollment with its user. Enrollments whose
// user row is missing are left out.
func (q *Queries) ListCourseStudents(ctx context.Context, courseID string) ([]model.EnrolledStudent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT cs.id, cs.course_id, cs.user_id, cs.mentors, cs.created_at,
		       u.id, u.github_id, u.first_name, u.last_name, u.email
		FROM course_students cs
		JOIN users u ON u.id = cs.user_id
		WHERE cs.course_id = $1
		ORDER BY cs.created_at, cs.id
	`, courseID)
	if err != nil {
		return nil, err
	}

	var students []model.EnrolledStudent
	mentorIDs := map[string]struct{}{}
	for rows.Next() {
		var student model.EnrolledStudent
		var id pgtype.UUID
		err := rows.Scan(
			&id,
			&student.CourseID,
			&student.UserID,
			&student.Mentors,
			&student.CreatedAt,
			&student.User.ID,
			&student.User.GithubID,
			&student.User.FirstName,
			&student.User.LastName,
			&student.User.Email,
		)
		if err != nil {
			rows.Close()
			return nil, err
		}
		student.ID = uuidString(id)
		student.CreatedAt = student.CreatedAt.UTC()
		if student.Mentors == nil {
			student.Mentors = []string{}
		}
		for _, mentorID := range student.Mentors {
			mentorIDs[mentorID] = struct{}{}
		}
		students = append(students, student)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mentors, err := q.usersByID(ctx, mentorIDs)
	if err != nil {
		return nil, err
	}
	for i := range students {
		students[i].MentorUsers = []model.User{}
		for _, mentorID := range students[i].Mentors {
			if user, ok := mentors[mentorID]; ok {
				students[i].MentorUsers = append(students[i].MentorUsers, user)
			}
		}
	}
	return students, nil
}

func (q *Queries) usersByID(ctx context.Context, ids map[string]struct{}) (map[string]model.User, error) {
	users := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	rows, err := q.db.Query(ctx, `
		SELECT id, github_id, first_name, last_name, email
		FROM users
		WHERE id = ANY($1)
	`, keys)
	if err != nil {
		return nil, err
	}
	collected, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) {
		var user model.User
		err := row.Scan(&user.ID, &user.GithubID, &user.FirstName, &user.LastName, &user.Email)
		return user, err
	})
	if err != nil {
		return nil, err
	}
	for _, user := range collected {
		users[user.ID] = user
	}
	return users, nil
}
