package store

import (
	"context"
	"errors"

	"rsschool/api/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousEvent means an id matched both a session and a task.
	ErrAmbiguousEvent = errors.New("event id matches more than one kind")
)

// Queries is the set of record operations available both on the store and
// inside a transaction.
type Queries interface {
	CreateTask(ctx context.Context, task model.Task) (model.Task, error)
	CreateSession(ctx context.Context, session model.Session) (model.Session, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	UpdateTask(ctx context.Context, task model.Task) (model.Task, error)
	UpdateSession(ctx context.Context, session model.Session) (model.Session, error)
	DeleteTask(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	ListCourseEvents(ctx context.Context, courseID string) ([]model.Event, error)

	CreateAssignment(ctx context.Context, assignment model.Assignment) (model.Assignment, error)
	DeleteAssignmentsByTask(ctx context.Context, taskID string) (int64, error)
	ListAssignments(ctx context.Context, courseID, studentID string) ([]model.Assignment, error)

	CreateCourse(ctx context.Context, course model.Course) (model.Course, error)
	GetCourse(ctx context.Context, id string) (model.Course, error)
	UpdateCourse(ctx context.Context, course model.Course) (model.Course, error)
	DeleteCourse(ctx context.Context, id string) error

	EnsureUser(ctx context.Context, userID string) error
	Enroll(ctx context.Context, student model.CourseStudent) (model.CourseStudent, error)
	GetCourseStudent(ctx context.Context, courseID, userID string) (model.CourseStudent, error)
	SetMentors(ctx context.Context, courseID, userID string, mentors []string) (model.CourseStudent, error)
	ListCourseStudents(ctx context.Context, courseID string) ([]model.EnrolledStudent, error)
}

type Store interface {
	Queries
	// Ready reports whether the backing connection is usable.
	Ready(ctx context.Context) error
	// WithTx runs fn against a transactional view. Any error from fn rolls
	// back every write made through that view.
	WithTx(ctx context.Context, fn func(Queries) error) error
}
