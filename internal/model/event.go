package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type EventKind string

const (
	KindTask    EventKind = "task"
	KindSession EventKind = "session"
)

const (
	fieldID        = "id"
	fieldLegacyID  = "_id"
	fieldType      = "type"
	fieldAuthor    = "author"
	fieldCourseID  = "courseId"
	fieldStart     = "startDateTime"
	fieldEnd       = "endDateTime"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// Fields is a free-form JSON object: a submission body, a patch, or the
// verbatim part of a stored event.
type Fields map[string]any

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Type returns the declared event type of a submission.
func (f Fields) Type() EventKind {
	value, _ := f[fieldType].(string)
	return EventKind(value)
}

// ID returns the event id carried by a patch body, accepting the legacy "_id" key.
func (f Fields) ID() string {
	if value, ok := f[fieldID].(string); ok && value != "" {
		return value
	}
	value, _ := f[fieldLegacyID].(string)
	return value
}

// DecodeFields reads one JSON object keeping numbers as json.Number.
func DecodeFields(r io.Reader) (Fields, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	var fields Fields
	if err := decoder.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return fields, nil
}

type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// Schedule holds what tasks and sessions have in common.
type Schedule struct {
	ID            string
	CourseID      string
	StartDateTime *time.Time
	EndDateTime   *time.Time
	Fields        Fields
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Task struct {
	Schedule
	Author string
}

type Session struct {
	Schedule
}

// NewTask builds a task from a submission. The author always comes from the
// caller; every other field is kept verbatim.
func NewTask(author string, body Fields) Task {
	task := Task{Author: author, Schedule: Schedule{Fields: Fields{}}}
	for key, value := range body {
		switch key {
		case fieldID, fieldLegacyID, fieldType, fieldAuthor, fieldCreatedAt, fieldUpdatedAt:
			continue
		}
		task.set(key, value)
	}
	return task
}

// NewSession builds a session from the whole submission body.
func NewSession(body Fields) Session {
	session := Session{Schedule: Schedule{Fields: Fields{}}}
	for key, value := range body {
		switch key {
		case fieldID, fieldLegacyID, fieldType, fieldCreatedAt, fieldUpdatedAt:
			continue
		}
		session.set(key, value)
	}
	return session
}

// Patched returns a copy of the task with the patch applied. Identity, kind and
// timestamps are not patchable.
func (t Task) Patched(patch Fields) (Task, error) {
	out := t
	out.Fields = t.Fields.Clone()
	for key, value := range patch {
		switch key {
		case fieldID, fieldLegacyID, fieldType, fieldCreatedAt, fieldUpdatedAt:
			continue
		case fieldAuthor:
			if value != nil {
				author, ok := value.(string)
				if !ok {
					return Task{}, &FieldError{Field: key, Reason: "must be a string"}
				}
				out.Author = author
			} else {
				out.Author = ""
			}
			continue
		}
		out.set(key, value)
	}
	return out, nil
}

func (s Session) Patched(patch Fields) Session {
	out := s
	out.Fields = s.Fields.Clone()
	for key, value := range patch {
		switch key {
		case fieldID, fieldLegacyID, fieldType, fieldCreatedAt, fieldUpdatedAt:
			continue
		}
		out.set(key, value)
	}
	return out
}

// set stores value verbatim. courseId and the date-times are also read into
// typed fields when they have a usable shape; otherwise those stay empty.
func (s *Schedule) set(key string, value any) {
	if s.Fields == nil {
		s.Fields = Fields{}
	}
	s.Fields[key] = value
	switch key {
	case fieldCourseID:
		s.CourseID, _ = value.(string)
	case fieldStart:
		s.StartDateTime = parseDateTime(value)
	case fieldEnd:
		s.EndDateTime = parseDateTime(value)
	}
}

func parseDateTime(value any) *time.Time {
	str, ok := value.(string)
	if !ok {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}

func (s Schedule) document(kind EventKind) map[string]any {
	doc := make(map[string]any, len(s.Fields)+7)
	for key, value := range s.Fields {
		doc[key] = value
	}
	doc[fieldID] = s.ID
	doc[fieldType] = string(kind)
	if _, ok := doc[fieldCourseID]; !ok && s.CourseID != "" {
		doc[fieldCourseID] = s.CourseID
	}
	if _, ok := doc[fieldStart]; !ok && s.StartDateTime != nil {
		doc[fieldStart] = s.StartDateTime.UTC().Format(time.RFC3339Nano)
	}
	if _, ok := doc[fieldEnd]; !ok && s.EndDateTime != nil {
		doc[fieldEnd] = s.EndDateTime.UTC().Format(time.RFC3339Nano)
	}
	doc[fieldCreatedAt] = s.CreatedAt.UTC().Format(time.RFC3339Nano)
	doc[fieldUpdatedAt] = s.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return doc
}

func (t Task) MarshalJSON() ([]byte, error) {
	doc := t.document(KindTask)
	doc[fieldAuthor] = t.Author
	return json.Marshal(doc)
}

func (s Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.document(KindSession))
}

// Event is either a task or a session, tagged by Kind.
type Event struct {
	Kind    EventKind
	Task    *Task
	Session *Session
}

func TaskEvent(task Task) Event {
	return Event{Kind: KindTask, Task: &task}
}

func SessionEvent(session Session) Event {
	return Event{Kind: KindSession, Session: &session}
}

func (e Event) Schedule() Schedule {
	switch e.Kind {
	case KindTask:
		return e.Task.Schedule
	case KindSession:
		return e.Session.Schedule
	}
	return Schedule{}
}

func (e Event) ID() string {
	return e.Schedule().ID
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindTask:
		return json.Marshal(e.Task)
	case KindSession:
		return json.Marshal(e.Session)
	}
	return nil, fmt.Errorf("unknown event kind %q", e.Kind)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	doc, err := DecodeFields(bytes.NewReader(data))
	if err != nil {
		return err
	}
	id, _ := doc[fieldID].(string)
	createdAt, err := optionalTimestamp(fieldCreatedAt, doc[fieldCreatedAt])
	if err != nil {
		return err
	}
	updatedAt, err := optionalTimestamp(fieldUpdatedAt, doc[fieldUpdatedAt])
	if err != nil {
		return err
	}

	switch doc.Type() {
	case KindTask:
		author, _ := doc[fieldAuthor].(string)
		task := NewTask(author, doc)
		task.ID, task.CreatedAt, task.UpdatedAt = id, createdAt, updatedAt
		*e = TaskEvent(task)
	case KindSession:
		session := NewSession(doc)
		session.ID, session.CreatedAt, session.UpdatedAt = id, createdAt, updatedAt
		*e = SessionEvent(session)
	default:
		return fmt.Errorf("unknown event type %q", doc.Type())
	}
	return nil
}

func optionalTimestamp(key string, value any) (time.Time, error) {
	if value == nil {
		return time.Time{}, nil
	}
	str, ok := value.(string)
	if !ok {
		return time.Time{}, &FieldError{Field: key, Reason: "must be a string"}
	}
	if str == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return time.Time{}, &FieldError{Field: key, Reason: "must be an RFC 3339 timestamp"}
	}
	return parsed, nil
}
