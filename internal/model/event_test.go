package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

const courseID = "11111111-1111-1111-1111-111111111111"

func TestNewTaskKeepsUnknownFieldsAndOverridesAuthor(t *testing.T) {
	body, err := DecodeFields(strings.NewReader(`{
		"type": "task",
		"author": "someone-else",
		"courseId": "` + courseID + `",
		"endDateTime": "2024-01-10T00:00:00Z",
		"name": "Basic JS",
		"maxScore": 100
	}`))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}

	task := NewTask("caller-1", body)
	if task.Author != "caller-1" {
		t.Fatalf("expected caller as author, got %s", task.Author)
	}
	if task.CourseID != courseID {
		t.Fatalf("expected course id %s, got %s", courseID, task.CourseID)
	}
	if task.EndDateTime == nil || !task.EndDateTime.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end date-time %v", task.EndDateTime)
	}
	if task.Fields["name"] != "Basic JS" {
		t.Fatalf("expected name to be kept, got %v", task.Fields["name"])
	}
	if task.Fields["maxScore"] != json.Number("100") {
		t.Fatalf("expected maxScore to be kept, got %v", task.Fields["maxScore"])
	}
	if _, ok := task.Fields["type"]; ok {
		t.Fatalf("type must not be stored as a verbatim field")
	}
	if _, ok := task.Fields["author"]; ok {
		t.Fatalf("author must not be stored as a verbatim field")
	}
}

func TestNewSessionCopiesWholeBody(t *testing.T) {
	session := NewSession(Fields{
		"type":          "session",
		"courseId":      courseID,
		"author":        "speaker-1",
		"place":         "room 101",
		"startDateTime": "2024-01-09T18:00:00+03:00",
	})
	if session.Fields["author"] != "speaker-1" || session.Fields["place"] != "room 101" {
		t.Fatalf("expected verbatim fields, got %v", session.Fields)
	}
	if session.StartDateTime == nil || session.StartDateTime.Hour() != 15 {
		t.Fatalf("expected start normalized to UTC, got %v", session.StartDateTime)
	}
	if session.Fields["startDateTime"] != "2024-01-09T18:00:00+03:00" {
		t.Fatalf("expected start kept as submitted, got %v", session.Fields["startDateTime"])
	}
}

func TestKnownFieldsOfAnyShapeAreKept(t *testing.T) {
	cases := []struct {
		body  Fields
		key   string
		value any
	}{
		{Fields{"courseId": "C1"}, "courseId", "C1"},
		{Fields{"courseId": 42}, "courseId", 42},
		{Fields{"endDateTime": "tomorrow"}, "endDateTime", "tomorrow"},
		{Fields{"startDateTime": true}, "startDateTime", true},
	}
	for _, tc := range cases {
		task := NewTask("caller-1", tc.body)
		if task.Fields[tc.key] != tc.value {
			t.Fatalf("expected %s kept as %v, got %v", tc.key, tc.value, task.Fields[tc.key])
		}
	}

	if task := NewTask("caller-1", Fields{"courseId": "C1"}); task.CourseID != "C1" {
		t.Fatalf("expected opaque course id, got %q", task.CourseID)
	}
	if task := NewTask("caller-1", Fields{"courseId": 42, "endDateTime": "tomorrow"}); task.CourseID != "" || task.EndDateTime != nil {
		t.Fatalf("expected no typed values, got %+v", task.Schedule)
	}
}

func TestTaskPatchRejectsNonStringAuthor(t *testing.T) {
	_, err := NewTask("caller-1", Fields{}).Patched(Fields{"author": 7})
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "author" {
		t.Fatalf("expected author field error, got %v", err)
	}
}

func TestTaskPatchedLeavesReceiverUntouched(t *testing.T) {
	task := NewTask("caller-1", Fields{"name": "old", "courseId": courseID})
	task.ID = "task-1"

	patched, err := task.Patched(Fields{
		"id":          "other",
		"type":        "session",
		"name":        "new",
		"author":      "caller-2",
		"endDateTime": "2024-02-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("patch error: %v", err)
	}
	if patched.ID != "task-1" {
		t.Fatalf("id must not be patchable, got %s", patched.ID)
	}
	if patched.Fields["name"] != "new" || patched.Author != "caller-2" || patched.EndDateTime == nil {
		t.Fatalf("unexpected patched task %+v", patched)
	}
	if task.Fields["name"] != "old" || task.Author != "caller-1" {
		t.Fatalf("receiver task changed: %+v", task)
	}
}

func TestSessionPatchedKeepsAuthorVerbatim(t *testing.T) {
	session := Session{Schedule: Schedule{ID: "session-1", Fields: Fields{}}}
	patched := session.Patched(Fields{"author": "speaker-2", "courseId": nil})
	if patched.Fields["author"] != "speaker-2" {
		t.Fatalf("expected author as verbatim field, got %v", patched.Fields)
	}
}

func TestEventJSONIsFlat(t *testing.T) {
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	event := TaskEvent(Task{
		Author: "caller-1",
		Schedule: Schedule{
			ID:          "task-1",
			CourseID:    courseID,
			EndDateTime: &end,
			Fields:      Fields{"name": "Basic JS"},
		},
	})

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if doc["type"] != "task" || doc["name"] != "Basic JS" || doc["author"] != "caller-1" {
		t.Fatalf("unexpected document %v", doc)
	}
	if doc["endDateTime"] != "2024-01-10T00:00:00Z" {
		t.Fatalf("unexpected end date-time %v", doc["endDateTime"])
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode event error: %v", err)
	}
	if decoded.Kind != KindTask || decoded.ID() != "task-1" || decoded.Task.Author != "caller-1" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestFieldsID(t *testing.T) {
	if id := (Fields{"_id": "legacy"}).ID(); id != "legacy" {
		t.Fatalf("expected legacy id, got %s", id)
	}
	if id := (Fields{"id": "new", "_id": "legacy"}).ID(); id != "new" {
		t.Fatalf("expected id to win, got %s", id)
	}
}

func TestCurrentMentor(t *testing.T) {
	if got := (CourseStudent{}).CurrentMentor(); got != "" {
		t.Fatalf("expected no mentor, got %s", got)
	}
	if got := (CourseStudent{Mentors: []string{"M2", "M1"}}).CurrentMentor(); got != "M2" {
		t.Fatalf("expected M2, got %s", got)
	}
}
