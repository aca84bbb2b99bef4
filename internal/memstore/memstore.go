// Package memstore keeps every record in process memory. It backs tests and
// the DATABASE_URL=memory:// development mode.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"rsschool/api/internal/model"
	"rsschool/api/internal/store"
)

var ErrUnavailable = errors.New("memstore unavailable")

type data struct {
	users       map[string]model.User
	courses     map[string]model.Course
	students    []model.CourseStudent
	tasks       map[string]model.Task
	sessions    map[string]model.Session
	assignments []model.Assignment
}

func newData() data {
	return data{
		users:    map[string]model.User{},
		courses:  map[string]model.Course{},
		tasks:    map[string]model.Task{},
		sessions: map[string]model.Session{},
	}
}

func (d data) clone() data {
	out := newData()
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.courses {
		out.courses[k] = v
	}
	for k, v := range d.tasks {
		out.tasks[k] = v
	}
	for k, v := range d.sessions {
		out.sessions[k] = v
	}
	out.students = append([]model.CourseStudent(nil), d.students...)
	out.assignments = append([]model.Assignment(nil), d.assignments...)
	return out
}

type Store struct {
	mu   sync.Mutex
	data data
	down bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newData()}
}

// SetReady toggles the result of Ready.
func (s *Store) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = !ready
}

// PutUser stores a user profile, replacing any previous one.
func (s *Store) PutUser(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[user.ID] = user
}

// PutEnrollment stores an enrollment as is, without creating its user.
func (s *Store) PutEnrollment(student model.CourseStudent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.students = append(s.data.students, student)
}

func (s *Store) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return ErrUnavailable
	}
	return nil
}

// WithTx holds the lock for the whole of fn and restores the previous state
// when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(store.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(&tx{d: &s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) locked(fn func(q *tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&tx{d: &s.data})
}

func (s *Store) CreateTask(ctx context.Context, task model.Task) (out model.Task, err error) {
	err = s.locked(func(q *tx) error { out, err = q.CreateTask(ctx, task); return err })
	return out, err
}

func (s *Store) CreateSession(ctx context.Context, session model.Session) (out model.Session, err error) {
	err = s.locked(func(q *tx) error { out, err = q.CreateSession(ctx, session); return err })
	return out, err
}

func (s *Store) GetEvent(ctx context.Context, id string) (out model.Event, err error) {
	err = s.locked(func(q *tx) error { out, err = q.GetEvent(ctx, id); return err })
	return out, err
}

func (s *Store) UpdateTask(ctx context.Context, task model.Task) (out model.Task, err error) {
	err = s.locked(func(q *tx) error { out, err = q.UpdateTask(ctx, task); return err })
	return out, err
}

func (s *Store) UpdateSession(ctx context.Context, session model.Session) (out model.Session, err error) {
	err = s.locked(func(q *tx) error { out, err = q.UpdateSession(ctx, session); return err })
	return out, err
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.locked(func(q *tx) error { return q.DeleteTask(ctx, id) })
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.locked(func(q *tx) error { return q.DeleteSession(ctx, id) })
}

func (s *Store) ListCourseEvents(ctx context.Context, courseID string) (out []model.Event, err error) {
	err = s.locked(func(q *tx) error { out, err = q.ListCourseEvents(ctx, courseID); return err })
	return out, err
}

func (s *Store) CreateAssignment(ctx context.Context, assignment model.Assignment) (out model.Assignment, err error) {
	err = s.locked(func(q *tx) error { out, err = q.CreateAssignment(ctx, assignment); return err })
	return out, err
}

func (s *Store) DeleteAssignmentsByTask(ctx context.Context, taskID string) (out int64, err error) {
	err = s.locked(func(q *tx) error { out, err = q.DeleteAssignmentsByTask(ctx, taskID); return err })
	return out, err
}

func (s *Store) ListAssignments(ctx context.Context, courseID, studentID string) (out []model.Assignment, err error) {
	err = s.locked(func(q *tx) error { out, err = q.ListAssignments(ctx, courseID, studentID); return err })
	return out, err
}

func (s *Store) CreateCourse(ctx context.Context, course model.Course) (out model.Course, err error) {
	err = s.locked(func(q *tx) error { out, err = q.CreateCourse(ctx, course); return err })
	return out, err
}

func (s *Store) GetCourse(ctx context.Context, id string) (out model.Course, err error) {
	err = s.locked(func(q *tx) error { out, err = q.GetCourse(ctx, id); return err })
	return out, err
}

func (s *Store) UpdateCourse(ctx context.Context, course model.Course) (out model.Course, err error) {
	err = s.locked(func(q *tx) error { out, err = q.UpdateCourse(ctx, course); return err })
	return out, err
}

func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	return s.locked(func(q *tx) error { return q.DeleteCourse(ctx, id) })
}

func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	return s.locked(func(q *tx) error { return q.EnsureUser(ctx, userID) })
}

func (s *Store) Enroll(ctx context.Context, student model.CourseStudent) (out model.CourseStudent, err error) {
	err = s.locked(func(q *tx) error { out, err = q.Enroll(ctx, student); return err })
	return out, err
}

func (s *Store) GetCourseStudent(ctx context.Context, courseID, userID string) (out model.CourseStudent, err error) {
	err = s.locked(func(q *tx) error { out, err = q.GetCourseStudent(ctx, courseID, userID); return err })
	return out, err
}

func (s *Store) SetMentors(ctx context.Context, courseID, userID string, mentors []string) (out model.CourseStudent, err error) {
	err = s.locked(func(q *tx) error { out, err = q.SetMentors(ctx, courseID, userID, mentors); return err })
	return out, err
}

func (s *Store) ListCourseStudents(ctx context.Context, courseID string) (out []model.EnrolledStudent, err error) {
	err = s.locked(func(q *tx) error { out, err = q.ListCourseStudents(ctx, courseID); return err })
	return out, err
}

// tx operates on the data without locking; callers hold Store.mu.
type tx struct {
	d *data
}

func (q *tx) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	task.Fields = task.Fields.Clone()
	q.d.tasks[task.ID] = task
	return task, nil
}

func (q *tx) CreateSession(ctx context.Context, session model.Session) (model.Session, error) {
	if err := ctx.Err(); err != nil {
		return model.Session{}, err
	}
	session.Fields = session.Fields.Clone()
	q.d.sessions[session.ID] = session
	return session, nil
}

func (q *tx) GetEvent(ctx context.Context, id string) (model.Event, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, err
	}
	session, isSession := q.d.sessions[id]
	task, isTask := q.d.tasks[id]
	switch {
	case isSession && isTask:
		return model.Event{}, store.ErrAmbiguousEvent
	case isSession:
		session.Fields = session.Fields.Clone()
		return model.SessionEvent(session), nil
	case isTask:
		task.Fields = task.Fields.Clone()
		return model.TaskEvent(task), nil
	}
	return model.Event{}, store.ErrNotFound
}

func (q *tx) UpdateTask(ctx context.Context, task model.Task) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	current, ok := q.d.tasks[task.ID]
	if !ok {
		return model.Task{}, store.ErrNotFound
	}
	task.CreatedAt = current.CreatedAt
	task.Fields = task.Fields.Clone()
	q.d.tasks[task.ID] = task
	return task, nil
}

func (q *tx) UpdateSession(ctx context.Context, session model.Session) (model.Session, error) {
	if err := ctx.Err(); err != nil {
		return model.Session{}, err
	}
	current, ok := q.d.sessions[session.ID]
	if !ok {
		return model.Session{}, store.ErrNotFound
	}
	session.CreatedAt = current.CreatedAt
	session.Fields = session.Fields.Clone()
	q.d.sessions[session.ID] = session
	return session, nil
}

func (q *tx) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := q.d.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(q.d.tasks, id)
	return nil
}

func (q *tx) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := q.d.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(q.d.sessions, id)
	return nil
}

func (q *tx) ListCourseEvents(ctx context.Context, courseID string) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var events []model.Event
	for _, session := range q.d.sessions {
		if courseID != "" && session.CourseID == courseID {
			events = append(events, model.SessionEvent(session))
		}
	}
	for _, task := range q.d.tasks {
		if courseID != "" && task.CourseID == courseID {
			events = append(events, model.TaskEvent(task))
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Schedule(), events[j].Schedule()
		switch {
		case a.StartDateTime == nil && b.StartDateTime != nil:
			return false
		case a.StartDateTime != nil && b.StartDateTime == nil:
			return true
		case a.StartDateTime != nil && !a.StartDateTime.Equal(*b.StartDateTime):
			return a.StartDateTime.Before(*b.StartDateTime)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return events, nil
}

func (q *tx) CreateAssignment(ctx context.Context, assignment model.Assignment) (model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assignment{}, err
	}
	q.d.assignments = append(q.d.assignments, assignment)
	return assignment, nil
}

func (q *tx) DeleteAssignmentsByTask(ctx context.Context, taskID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	kept := q.d.assignments[:0]
	var removed int64
	for _, assignment := range q.d.assignments {
		if assignment.TaskID == taskID {
			removed++
			continue
		}
		kept = append(kept, assignment)
	}
	q.d.assignments = kept
	return removed, nil
}

func (q *tx) ListAssignments(ctx context.Context, courseID, studentID string) ([]model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.Assignment
	for _, assignment := range q.d.assignments {
		if assignment.CourseID == courseID && assignment.StudentID == studentID {
			out = append(out, assignment)
		}
	}
	return out, nil
}

func (q *tx) CreateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	if err := ctx.Err(); err != nil {
		return model.Course{}, err
	}
	q.d.courses[course.ID] = course
	return course, nil
}

func (q *tx) GetCourse(ctx context.Context, id string) (model.Course, error) {
	if err := ctx.Err(); err != nil {
		return model.Course{}, err
	}
	course, ok := q.d.courses[id]
	if !ok {
		return model.Course{}, store.ErrNotFound
	}
	return course, nil
}

func (q *tx) UpdateCourse(ctx context.Context, course model.Course) (model.Course, error) {
	if err := ctx.Err(); err != nil {
		return model.Course{}, err
	}
	current, ok := q.d.courses[course.ID]
	if !ok {
		return model.Course{}, store.ErrNotFound
	}
	course.CreatedAt = current.CreatedAt
	q.d.courses[course.ID] = course
	return course, nil
}

func (q *tx) DeleteCourse(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := q.d.courses[id]; !ok {
		return store.ErrNotFound
	}
	delete(q.d.courses, id)
	kept := q.d.students[:0]
	for _, student := range q.d.students {
		if student.CourseID != id {
			kept = append(kept, student)
		}
	}
	q.d.students = kept
	return nil
}

func (q *tx) EnsureUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := q.d.users[userID]; !ok {
		q.d.users[userID] = model.User{ID: userID}
	}
	return nil
}

func (q *tx) Enroll(ctx context.Context, student model.CourseStudent) (model.CourseStudent, error) {
	if err := ctx.Err(); err != nil {
		return model.CourseStudent{}, err
	}
	if _, ok := q.d.courses[student.CourseID]; !ok {
		return model.CourseStudent{}, store.ErrNotFound
	}
	if existing, ok := q.find(student.CourseID, student.UserID); ok {
		return q.d.students[existing], nil
	}
	if student.Mentors == nil {
		student.Mentors = []string{}
	}
	q.d.students = append(q.d.students, student)
	return student, nil
}

func (q *tx) GetCourseStudent(ctx context.Context, courseID, userID string) (model.CourseStudent, error) {
	if err := ctx.Err(); err != nil {
		return model.CourseStudent{}, err
	}
	index, ok := q.find(courseID, userID)
	if !ok {
		return model.CourseStudent{}, store.ErrNotFound
	}
	return q.d.students[index], nil
}

func (q *tx) SetMentors(ctx context.Context, courseID, userID string, mentors []string) (model.CourseStudent, error) {
	if err := ctx.Err(); err != nil {
		return model.CourseStudent{}, err
	}
	index, ok := q.find(courseID, userID)
	if !ok {
		return model.CourseStudent{}, store.ErrNotFound
	}
	updated := q.d.students[index]
	updated.Mentors = append([]string{}, mentors...)
	q.d.students[index] = updated
	return updated, nil
}

func (q *tx) ListCourseStudents(ctx context.Context, courseID string) ([]model.EnrolledStudent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.EnrolledStudent
	for _, student := range q.d.students {
		if courseID == "" || student.CourseID != courseID {
			continue
		}
		user, ok := q.d.users[student.UserID]
		if !ok {
			continue
		}
		enrolled := model.EnrolledStudent{CourseStudent: student, User: user, MentorUsers: []model.User{}}
		for _, mentorID := range student.Mentors {
			if mentor, ok := q.d.users[mentorID]; ok {
				enrolled.MentorUsers = append(enrolled.MentorUsers, mentor)
			}
		}
		out = append(out, enrolled)
	}
	return out, nil
}

func (q *tx) find(courseID, userID string) (int, bool) {
	for i, student := range q.d.students {
		if student.CourseID == courseID && student.UserID == userID {
			return i, true
		}
	}
	return 0, false
}
