package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"rsschool/api/internal/events"
	"rsschool/api/internal/model"
)

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	submission, err := model.DecodeFields(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	event, err := s.events.Create(r.Context(), claims.UserID, submission)
	if err != nil {
		s.writeEventError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.events.Get(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		s.writeEventError(w, r, err)
		return
	}
	writeData(w, event)
}

func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	patch, err := model.DecodeFields(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	event, err := s.events.Update(r.Context(), patch)
	if err != nil {
		s.writeEventError(w, r, err)
		return
	}
	writeData(w, event)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Delete(r.Context(), chi.URLParam(r, "eventId")); err != nil {
		s.writeEventError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, empty)
}

func (s *Server) writeEventError(w http.ResponseWriter, r *http.Request, err error) {
	var eventErr *events.Error
	if !errors.As(err, &eventErr) {
		s.logServerError(r, "event request failed", err)
		writeError(w, http.StatusInternalServerError, events.ErrServerError)
		return
	}
	switch eventErr.Code {
	case events.ErrEventNotFound:
		writeJSON(w, http.StatusNotFound, empty)
	case events.ErrInvalidEventType, events.ErrInvalidEventID, events.ErrInvalidField:
		writeError(w, http.StatusBadRequest, eventErr.Code)
	default:
		s.logServerError(r, eventErr.Op, eventErr.Err)
		writeError(w, http.StatusInternalServerError, events.ErrServerError)
	}
}

func (s *Server) logServerError(r *http.Request, op string, err error) {
	if op == "" {
		op = "request failed"
	}
	s.log.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error(op)
}
