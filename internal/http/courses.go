package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rsschool/api/internal/courses"
)

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var input courses.CourseInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, courses.ErrInvalidRequest)
		return
	}
	course, err := s.courses.Create(r.Context(), input)
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, course)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.courses.Get(r.Context(), chi.URLParam(r, "courseId"))
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, course)
}

func (s *Server) handlePatchCourse(w http.ResponseWriter, r *http.Request) {
	var input courses.CourseInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, courses.ErrInvalidRequest)
		return
	}
	course, err := s.courses.Update(r.Context(), chi.URLParam(r, "courseId"), input)
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, course)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.courses.Delete(r.Context(), chi.URLParam(r, "courseId")); err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, empty)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	student, err := s.courses.Enroll(r.Context(), chi.URLParam(r, "courseId"), claims.UserID)
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, student)
}

func (s *Server) handleCourseEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.courses.Events(r.Context(), chi.URLParam(r, "courseId"))
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, events)
}

func (s *Server) handleCourseStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.courses.Students(r.Context(), chi.URLParam(r, "courseId"))
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, students)
}

func (s *Server) handleAssignMentors(w http.ResponseWriter, r *http.Request) {
	var pairs []courses.MentorAssignment
	if err := decodeJSON(r, &pairs); err != nil {
		writeError(w, http.StatusBadRequest, courses.ErrInvalidRequest)
		return
	}
	students, err := s.courses.AssignMentors(r.Context(), chi.URLParam(r, "courseId"), pairs)
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, students)
}

func (s *Server) handleStudentAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.courses.Assignments(r.Context(), chi.URLParam(r, "courseId"), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, assignments)
}

func (s *Server) handleStudentTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.courses.Tasks(r.Context(), chi.URLParam(r, "courseId"), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeCourseError(w, r, err)
		return
	}
	writeData(w, tasks)
}

func (s *Server) writeCourseError(w http.ResponseWriter, r *http.Request, err error) {
	var courseErr *courses.Error
	if !errors.As(err, &courseErr) {
		s.logServerError(r, "course request failed", err)
		writeError(w, http.StatusInternalServerError, courses.ErrServerError)
		return
	}
	switch courseErr.Code {
	case courses.ErrCourseNotFound, courses.ErrStudentNotFound:
		writeJSON(w, http.StatusNotFound, empty)
	case courses.ErrInvalidRequest:
		writeError(w, http.StatusBadRequest, courseErr.Code)
	default:
		s.logServerError(r, courseErr.Op, courseErr.Err)
		writeError(w, http.StatusInternalServerError, courses.ErrServerError)
	}
}
