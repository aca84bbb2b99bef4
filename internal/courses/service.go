package courses

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rsschool/api/internal/model"
	"rsschool/api/internal/store"
)

const (
	ErrCourseNotFound  = "course_not_found"
	ErrStudentNotFound = "student_not_found"
	ErrInvalidRequest  = "invalid_request"
	ErrServerError     = "server_error"
)

type Error struct {
	Code string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

var validate = validator.New()

// CourseInput is the body of course create and patch requests. Nil fields
// are left untouched by a patch.
type CourseInput struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=256"`
	Alias       *string    `json:"alias" validate:"omitempty,max=128"`
	Description *string    `json:"description" validate:"omitempty,max=4096"`
	Year        *int       `json:"year" validate:"omitempty,gte=1900,lte=3000"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Completed   *bool      `json:"completed"`
}

type MentorAssignment struct {
	StudentID string `json:"studentId" validate:"required"`
	MentorID  string `json:"mentorId" validate:"required"`
}

// EventCache drops cached events that a course deletion removed.
type EventCache interface {
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Cache  EventCache
	Logger logrus.FieldLogger
}

type Service struct {
	store store.Store
	cache EventCache
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(st store.Store, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store: st,
		cache: opts.Cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Service) Get(ctx context.Context, id string) (model.Course, error) {
	course, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return model.Course{}, storeError(err, ErrCourseNotFound, "failed to load course")
	}
	return course, nil
}

func (s *Service) Create(ctx context.Context, input CourseInput) (model.Course, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return model.Course{}, &Error{Code: ErrInvalidRequest, Err: errors.New("name is required")}
	}
	if err := validate.Struct(input); err != nil {
		return model.Course{}, &Error{Code: ErrInvalidRequest, Err: err}
	}
	now := s.now()
	course := apply(model.Course{ID: uuid.NewString(), CreatedAt: now}, input)
	course.UpdatedAt = now
	created, err := s.store.CreateCourse(ctx, course)
	if err != nil {
		return model.Course{}, &Error{Code: ErrServerError, Op: "failed to save course", Err: err}
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id string, input CourseInput) (model.Course, error) {
	if err := validate.Struct(input); err != nil {
		return model.Course{}, &Error{Code: ErrInvalidRequest, Err: err}
	}
	var updated model.Course
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		current, err := q.GetCourse(ctx, id)
		if err != nil {
			return err
		}
		course := apply(current, input)
		course.UpdatedAt = s.now()
		updated, err = q.UpdateCourse(ctx, course)
		return err
	})
	if err != nil {
		return model.Course{}, storeError(err, ErrCourseNotFound, "failed to update course")
	}
	return updated, nil
}

// Delete removes the course together with its enrollments, its sessions and
// tasks, and the assignments of those tasks.
func (s *Service) Delete(ctx context.Context, id string) error {
	var removed []string
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		if err := q.DeleteCourse(ctx, id); err != nil {
			return err
		}
		events, err := q.ListCourseEvents(ctx, id)
		if err != nil {
			return err
		}
		removed = removed[:0]
		for _, event := range events {
			if err := deleteEvent(ctx, q, event); err != nil {
				return err
			}
			removed = append(removed, event.ID())
		}
		return nil
	})
	if err != nil {
		return storeError(err, ErrCourseNotFound, "failed to remove course")
	}
	if s.cache != nil {
		for _, eventID := range removed {
			if err := s.cache.Delete(ctx, eventID); err != nil {
				s.log.WithError(err).WithField("event_id", eventID).Warn("event cache invalidation failed")
			}
		}
	}
	return nil
}

func deleteEvent(ctx context.Context, q store.Queries, event model.Event) error {
	if event.Kind == model.KindSession {
		return q.DeleteSession(ctx, event.ID())
	}
	if err := q.DeleteTask(ctx, event.ID()); err != nil {
		return err
	}
	_, err := q.DeleteAssignmentsByTask(ctx, event.ID())
	return err
}

// Enroll makes userID a student of the course. Enrolling twice returns the
// existing enrollment.
func (s *Service) Enroll(ctx context.Context, courseID, userID string) (model.CourseStudent, error) {
	var enrolled model.CourseStudent
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		if _, err := q.GetCourse(ctx, courseID); err != nil {
			return err
		}
		if err := q.EnsureUser(ctx, userID); err != nil {
			return err
		}
		var err error
		enrolled, err = q.Enroll(ctx, model.CourseStudent{
			ID:        uuid.NewString(),
			CourseID:  courseID,
			UserID:    userID,
			Mentors:   []string{},
			CreatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return model.CourseStudent{}, storeError(err, ErrCourseNotFound, "failed to enroll student")
	}
	return enrolled, nil
}

// Events lists the sessions and tasks of the course by start date-time.
func (s *Service) Events(ctx context.Context, courseID string) ([]model.Event, error) {
	events, err := s.store.ListCourseEvents(ctx, courseID)
	if err != nil {
		return nil, &Error{Code: ErrServerError, Op: "failed to list course events", Err: err}
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

func (s *Service) Students(ctx context.Context, courseID string) ([]model.EnrolledStudent, error) {
	students, err := s.store.ListCourseStudents(ctx, courseID)
	if err != nil {
		return nil, &Error{Code: ErrServerError, Op: "failed to list course students", Err: err}
	}
	if students == nil {
		students = []model.EnrolledStudent{}
	}
	return students, nil
}

// AssignMentors makes each mentor the current mentor of its student. Earlier
// mentors are kept behind it. All pairs are applied or none.
func (s *Service) AssignMentors(ctx context.Context, courseID string, pairs []MentorAssignment) ([]model.CourseStudent, error) {
	for _, pair := range pairs {
		if err := validate.Struct(pair); err != nil {
			return nil, &Error{Code: ErrInvalidRequest, Err: err}
		}
	}
	updated := make([]model.CourseStudent, 0, len(pairs))
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		for _, pair := range pairs {
			student, err := q.GetCourseStudent(ctx, courseID, pair.StudentID)
			if err != nil {
				return err
			}
			if err := q.EnsureUser(ctx, pair.MentorID); err != nil {
				return err
			}
			mentors := []string{pair.MentorID}
			for _, previous := range student.Mentors {
				if previous != pair.MentorID {
					mentors = append(mentors, previous)
				}
			}
			student, err = q.SetMentors(ctx, courseID, pair.StudentID, mentors)
			if err != nil {
				return err
			}
			updated = append(updated, student)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, ErrStudentNotFound, "failed to assign mentors")
	}
	return updated, nil
}

func (s *Service) Assignments(ctx context.Context, courseID, userID string) ([]model.Assignment, error) {
	assignments, err := s.store.ListAssignments(ctx, courseID, userID)
	if err != nil {
		return nil, &Error{Code: ErrServerError, Op: "failed to list assignments", Err: err}
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	return assignments, nil
}

// Tasks pairs every task of the course with the student's assignment for it,
// when one exists.
func (s *Service) Tasks(ctx context.Context, courseID, userID string) ([]model.StudentTask, error) {
	events, err := s.store.ListCourseEvents(ctx, courseID)
	if err != nil {
		return nil, &Error{Code: ErrServerError, Op: "failed to list course tasks", Err: err}
	}
	assignments, err := s.store.ListAssignments(ctx, courseID, userID)
	if err != nil {
		return nil, &Error{Code: ErrServerError, Op: "failed to list assignments", Err: err}
	}
	byTask := make(map[string]model.Assignment, len(assignments))
	for _, assignment := range assignments {
		byTask[assignment.TaskID] = assignment
	}

	tasks := []model.StudentTask{}
	for _, event := range events {
		if event.Kind != model.KindTask {
			continue
		}
		item := model.StudentTask{Task: *event.Task}
		if assignment, ok := byTask[event.ID()]; ok {
			item.Assignment = &assignment
		}
		tasks = append(tasks, item)
	}
	return tasks, nil
}

func apply(course model.Course, input CourseInput) model.Course {
	if input.Name != nil {
		course.Name = strings.TrimSpace(*input.Name)
	}
	if input.Alias != nil {
		course.Alias = *input.Alias
	}
	if input.Description != nil {
		course.Description = *input.Description
	}
	if input.Year != nil {
		course.Year = *input.Year
	}
	if input.StartDate != nil {
		start := input.StartDate.UTC()
		course.StartDate = &start
	}
	if input.EndDate != nil {
		end := input.EndDate.UTC()
		course.EndDate = &end
	}
	if input.Completed != nil {
		course.Completed = *input.Completed
	}
	return course
}

func storeError(err error, notFound, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Code: notFound}
	}
	return &Error{Code: ErrServerError, Op: op, Err: err}
}
