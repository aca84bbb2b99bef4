package courses

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"rsschool/api/internal/events"
	"rsschool/api/internal/memstore"
	"rsschool/api/internal/model"
	"rsschool/api/internal/store"
)

func strPtr(value string) *string {
	return &value
}

func codeOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}

func mustCourse(t *testing.T, svc *Service) model.Course {
	t.Helper()
	course, err := svc.Create(context.Background(), CourseInput{Name: strPtr("JavaScript 2024")})
	if err != nil {
		t.Fatalf("create course error: %v", err)
	}
	return course
}

func TestCreateCourseRequiresName(t *testing.T) {
	svc := NewService(memstore.New(), Options{})
	if _, err := svc.Create(context.Background(), CourseInput{Alias: strPtr("js")}); codeOf(err) != ErrInvalidRequest {
		t.Fatalf("expected invalid_request, got %v", err)
	}
	if _, err := svc.Create(context.Background(), CourseInput{Name: strPtr("  ")}); codeOf(err) != ErrInvalidRequest {
		t.Fatalf("expected invalid_request for blank name, got %v", err)
	}
}

func TestCourseCRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.New(), Options{})
	course := mustCourse(t, svc)

	got, err := svc.Get(ctx, course.ID)
	if err != nil || got.Name != "JavaScript 2024" {
		t.Fatalf("unexpected course %+v err=%v", got, err)
	}

	done := true
	updated, err := svc.Update(ctx, course.ID, CourseInput{Alias: strPtr("js-2024"), Completed: &done})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.Name != "JavaScript 2024" || updated.Alias != "js-2024" || !updated.Completed {
		t.Fatalf("unexpected updated course %+v", updated)
	}

	if err := svc.Delete(ctx, course.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, err := svc.Get(ctx, course.ID); codeOf(err) != ErrCourseNotFound {
		t.Fatalf("expected course_not_found, got %v", err)
	}
	if _, err := svc.Update(ctx, course.ID, CourseInput{}); codeOf(err) != ErrCourseNotFound {
		t.Fatalf("expected course_not_found on update, got %v", err)
	}
}

type recordingCache struct {
	dropped []string
}

func (c *recordingCache) Delete(_ context.Context, id string) error {
	c.dropped = append(c.dropped, id)
	return nil
}

func TestDeleteCourseRemovesItsEvents(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	cache := &recordingCache{}
	svc := NewService(st, Options{Cache: cache})
	eventSvc := events.NewService(st, events.Options{})
	course := mustCourse(t, svc)
	other := mustCourse(t, svc)

	if _, err := svc.Enroll(ctx, course.ID, "student-1"); err != nil {
		t.Fatalf("enroll error: %v", err)
	}
	task, err := eventSvc.Create(ctx, "admin-1", model.Fields{"type": "task", "courseId": course.ID})
	if err != nil {
		t.Fatalf("create task error: %v", err)
	}
	session, err := eventSvc.Create(ctx, "admin-1", model.Fields{"type": "session", "courseId": course.ID})
	if err != nil {
		t.Fatalf("create session error: %v", err)
	}
	kept, err := eventSvc.Create(ctx, "admin-1", model.Fields{"type": "session", "courseId": other.ID})
	if err != nil {
		t.Fatalf("create session error: %v", err)
	}

	if err := svc.Delete(ctx, course.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	for _, id := range []string{task.ID(), session.ID()} {
		if _, err := st.GetEvent(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected event %s removed, got %v", id, err)
		}
	}
	if assignments, _ := st.ListAssignments(ctx, course.ID, "student-1"); len(assignments) != 0 {
		t.Fatalf("expected assignments removed, got %d", len(assignments))
	}
	if _, err := st.GetEvent(ctx, kept.ID()); err != nil {
		t.Fatalf("expected other course event kept, got %v", err)
	}
	if len(cache.dropped) != 2 {
		t.Fatalf("expected 2 cache entries dropped, got %v", cache.dropped)
	}

	if err := svc.Delete(ctx, course.ID); codeOf(err) != ErrCourseNotFound {
		t.Fatalf("expected course_not_found, got %v", err)
	}
}

func TestEnrollTwiceKeepsOneStudent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.New(), Options{})
	course := mustCourse(t, svc)

	first, err := svc.Enroll(ctx, course.ID, "student-1")
	if err != nil {
		t.Fatalf("enroll error: %v", err)
	}
	second, err := svc.Enroll(ctx, course.ID, "student-1")
	if err != nil {
		t.Fatalf("enroll again error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same enrollment")
	}

	students, err := svc.Students(ctx, course.ID)
	if err != nil {
		t.Fatalf("students error: %v", err)
	}
	if len(students) != 1 || students[0].User.ID != "student-1" {
		t.Fatalf("unexpected students %+v", students)
	}

	if _, err := svc.Enroll(ctx, uuid.NewString(), "student-1"); codeOf(err) != ErrCourseNotFound {
		t.Fatalf("expected course_not_found, got %v", err)
	}
}

func TestAssignedMentorReachesNewAssignments(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st, Options{})
	eventSvc := events.NewService(st, events.Options{NativeIDs: true})
	course := mustCourse(t, svc)

	if _, err := svc.Enroll(ctx, course.ID, "student-1"); err != nil {
		t.Fatalf("enroll error: %v", err)
	}
	if _, err := svc.AssignMentors(ctx, course.ID, []MentorAssignment{{StudentID: "student-1", MentorID: "mentor-1"}}); err != nil {
		t.Fatalf("assign error: %v", err)
	}
	updated, err := svc.AssignMentors(ctx, course.ID, []MentorAssignment{{StudentID: "student-1", MentorID: "mentor-2"}})
	if err != nil {
		t.Fatalf("reassign error: %v", err)
	}
	if got := updated[0].Mentors; len(got) != 2 || got[0] != "mentor-2" || got[1] != "mentor-1" {
		t.Fatalf("unexpected mentors %v", got)
	}

	task, err := eventSvc.Create(ctx, "admin-1", model.Fields{"type": "task", "courseId": course.ID})
	if err != nil {
		t.Fatalf("create task error: %v", err)
	}
	assignments, err := svc.Assignments(ctx, course.ID, "student-1")
	if err != nil {
		t.Fatalf("assignments error: %v", err)
	}
	if len(assignments) != 1 || assignments[0].MentorID != "mentor-2" || assignments[0].TaskID != task.ID() {
		t.Fatalf("unexpected assignments %+v", assignments)
	}
}

func TestAssignMentorsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.New(), Options{})
	course := mustCourse(t, svc)
	if _, err := svc.Enroll(ctx, course.ID, "student-1"); err != nil {
		t.Fatalf("enroll error: %v", err)
	}

	_, err := svc.AssignMentors(ctx, course.ID, []MentorAssignment{
		{StudentID: "student-1", MentorID: "mentor-1"},
		{StudentID: "stranger", MentorID: "mentor-1"},
	})
	if codeOf(err) != ErrStudentNotFound {
		t.Fatalf("expected student_not_found, got %v", err)
	}
	students, _ := svc.Students(ctx, course.ID)
	if len(students[0].Mentors) != 0 {
		t.Fatalf("expected no mentor after failed batch, got %v", students[0].Mentors)
	}

	if _, err := svc.AssignMentors(ctx, course.ID, []MentorAssignment{{StudentID: "student-1"}}); codeOf(err) != ErrInvalidRequest {
		t.Fatalf("expected invalid_request, got %v", err)
	}
}

func TestStudentTasksPairAssignments(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st, Options{})
	eventSvc := events.NewService(st, events.Options{})
	course := mustCourse(t, svc)

	before, err := eventSvc.Create(ctx, "admin-1", model.Fields{"type": "task", "courseId": course.ID, "startDateTime": "2024-01-01T10:00:00Z"})
	if err != nil {
		t.Fatalf("create task error: %v", err)
	}
	if _, err := svc.Enroll(ctx, course.ID, "student-1"); err != nil {
		t.Fatalf("enroll error: %v", err)
	}
	after, err := eventSvc.Create(ctx, "admin-1", model.Fields{"type": "task", "courseId": course.ID, "startDateTime": "2024-02-01T10:00:00Z"})
	if err != nil {
		t.Fatalf("create task error: %v", err)
	}
	if _, err := eventSvc.Create(ctx, "admin-1", model.Fields{"type": "session", "courseId": course.ID, "startDateTime": "2024-01-15T10:00:00Z"}); err != nil {
		t.Fatalf("create session error: %v", err)
	}

	all, err := svc.Events(ctx, course.ID)
	if err != nil {
		t.Fatalf("events error: %v", err)
	}
	if len(all) != 3 || all[1].Kind != model.KindSession {
		t.Fatalf("expected events ordered by start, got %+v", all)
	}

	tasks, err := svc.Tasks(ctx, course.ID, "student-1")
	if err != nil {
		t.Fatalf("tasks error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Task.ID != before.ID() || tasks[0].Assignment != nil {
		t.Fatalf("expected first task without assignment, got %+v", tasks[0])
	}
	if tasks[1].Task.ID != after.ID() || tasks[1].Assignment == nil {
		t.Fatalf("expected second task with assignment, got %+v", tasks[1])
	}
}
