package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rsschool/api/internal/metrics"
	"rsschool/api/internal/model"
	"rsschool/api/internal/store"
)

const (
	ErrEventNotFound    = "event_not_found"
	ErrInvalidEventType = "invalid_event_type"
	ErrInvalidEventID   = "invalid_event_id"
	ErrInvalidField     = "invalid_field"
	ErrServerError      = "server_error"
)

// Error carries a client-facing code. Op and Err describe the cause for logs.
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

// Cache is an optional read-through cache for event lookups.
type Cache interface {
	Get(ctx context.Context, id string) (model.Event, bool, error)
	Set(ctx context.Context, event model.Event) error
	Delete(ctx context.Context, id string) error
}

type Options struct {
	Cache   Cache
	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger
	// NativeIDs makes Get reject ids that are not UUIDs.
	NativeIDs bool
}

type Service struct {
	store     store.Store
	cache     Cache
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	nativeIDs bool
	now       func() time.Time
}

func NewService(st store.Store, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:     st,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		log:       log,
		nativeIDs: opts.NativeIDs,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Create persists a task or a session built from the submission. A task
// also gets one assignment per enrolled student of its course, all in the
// same transaction.
func (s *Service) Create(ctx context.Context, callerID string, submission model.Fields) (model.Event, error) {
	switch submission.Type() {
	case model.KindTask:
		return s.createTask(ctx, model.NewTask(callerID, submission))
	case model.KindSession:
		return s.createSession(ctx, model.NewSession(submission))
	}
	return model.Event{}, &Error{Code: ErrInvalidEventType}
}

func (s *Service) createTask(ctx context.Context, task model.Task) (model.Event, error) {
	now := s.now()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.UpdatedAt = now

	var created model.Task
	var assigned int
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		created, err = q.CreateTask(ctx, task)
		if err != nil {
			return err
		}
		assigned, err = fanOut(ctx, q, created, now)
		return err
	})
	if err != nil {
		return model.Event{}, &Error{Code: ErrServerError, Op: "failed to save document", Err: err}
	}
	s.metrics.EventCreated(string(model.KindTask), assigned)
	return model.TaskEvent(created), nil
}

// fanOut creates one assignment per enrolled student of the task's course,
// in enrollment order.
func fanOut(ctx context.Context, q store.Queries, task model.Task, now time.Time) (int, error) {
	if task.CourseID == "" {
		return 0, nil
	}
	students, err := q.ListCourseStudents(ctx, task.CourseID)
	if err != nil {
		return 0, err
	}
	for _, student := range students {
		_, err := q.CreateAssignment(ctx, model.Assignment{
			ID:           uuid.NewString(),
			CourseID:     task.CourseID,
			TaskID:       task.ID,
			StudentID:    student.UserID,
			MentorID:     student.CurrentMentor(),
			DeadlineDate: task.EndDateTime,
			Status:       model.AssignmentAssigned,
			CreatedAt:    now,
		})
		if err != nil {
			return 0, err
		}
	}
	return len(students), nil
}

func (s *Service) createSession(ctx context.Context, session model.Session) (model.Event, error) {
	now := s.now()
	session.ID = uuid.NewString()
	session.CreatedAt = now
	session.UpdatedAt = now

	created, err := s.store.CreateSession(ctx, session)
	if err != nil {
		return model.Event{}, &Error{Code: ErrServerError, Op: "failed to save document", Err: err}
	}
	s.metrics.EventCreated(string(model.KindSession), 0)
	return model.SessionEvent(created), nil
}

// Get resolves an id to a session or a task. The store must be ready before
// the id is even looked at.
func (s *Service) Get(ctx context.Context, id string) (model.Event, error) {
	if err := s.store.Ready(ctx); err != nil {
		return model.Event{}, &Error{Code: ErrServerError, Op: "store not ready", Err: err}
	}
	if s.nativeIDs {
		if _, err := uuid.Parse(id); err != nil {
			return model.Event{}, &Error{Code: ErrInvalidEventID}
		}
	}

	if s.cache != nil {
		event, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("event_id", id).Warn("event cache read failed")
		}
		s.metrics.CacheLookup(ok)
		if ok {
			return event, nil
		}
	}

	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, storeError(err, "failed to load document")
	}
	s.remember(ctx, event)
	return event, nil
}

// Update applies patch to the event named by its id (or legacy _id) key.
// The kind of the event never changes.
func (s *Service) Update(ctx context.Context, patch model.Fields) (model.Event, error) {
	id := patch.ID()
	if id == "" {
		return model.Event{}, &Error{Code: ErrInvalidEventID}
	}

	var updated model.Event
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		current, err := q.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		switch current.Kind {
		case model.KindTask:
			task, err := current.Task.Patched(patch)
			if err != nil {
				return err
			}
			task.UpdatedAt = now
			task, err = q.UpdateTask(ctx, task)
			if err != nil {
				return err
			}
			updated = model.TaskEvent(task)
		case model.KindSession:
			session := current.Session.Patched(patch)
			session.UpdatedAt = now
			saved, err := q.UpdateSession(ctx, session)
			if err != nil {
				return err
			}
			updated = model.SessionEvent(saved)
		}
		return nil
	})
	if err != nil {
		var invalid *model.FieldError
		if errors.As(err, &invalid) {
			return model.Event{}, fieldError(err)
		}
		return model.Event{}, storeError(err, "failed to update document")
	}
	s.forget(ctx, id)
	s.metrics.EventUpdated(string(updated.Kind))
	return updated, nil
}

// Delete removes the event. Deleting a task also removes its assignments.
func (s *Service) Delete(ctx context.Context, id string) error {
	var kind model.EventKind
	var removed int64
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		current, err := q.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		kind = current.Kind
		if kind == model.KindSession {
			return q.DeleteSession(ctx, id)
		}
		if err := q.DeleteTask(ctx, id); err != nil {
			return err
		}
		removed, err = q.DeleteAssignmentsByTask(ctx, id)
		return err
	})
	if err != nil {
		return storeError(err, "failed to remove document")
	}
	s.forget(ctx, id)
	s.metrics.EventDeleted(string(kind), removed)
	return nil
}

// remember caches a value read outside any transaction. An update or delete
// committed between that read and this write leaves a stale entry until the
// TTL expires.
func (s *Service) remember(ctx context.Context, event model.Event) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, event); err != nil {
		s.log.WithError(err).WithField("event_id", event.ID()).Warn("event cache write failed")
	}
}

func (s *Service) forget(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.WithError(err).WithField("event_id", id).Warn("event cache invalidation failed")
	}
}

func fieldError(err error) error {
	return &Error{Code: ErrInvalidField, Err: err}
}

func storeError(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Code: ErrEventNotFound}
	}
	return &Error{Code: ErrServerError, Op: op, Err: err}
}
