package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"rsschool/api/internal/auth"
	"rsschool/api/internal/config"
	"rsschool/api/internal/courses"
	"rsschool/api/internal/events"
)

type Server struct {
	cfg     config.Config
	events  *events.Service
	courses *courses.Service
	log     logrus.FieldLogger
}

func NewServer(cfg config.Config, eventService *events.Service, courseService *courses.Service, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		cfg:     cfg,
		events:  eventService,
		courses: courseService,
		log:     log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.authMiddleware).Post("/events", s.handleCreateEvent)
	r.With(s.authMiddleware).Patch("/events", s.handlePatchEvent)
	r.With(s.authMiddleware).Get("/events/{eventId}", s.handleGetEvent)
	r.With(s.authMiddleware).Delete("/events/{eventId}", s.handleDeleteEvent)

	r.With(s.authMiddleware).Post("/course", s.handleCreateCourse)
	r.With(s.authMiddleware).Get("/course/{courseId}", s.handleGetCourse)
	r.With(s.authMiddleware, s.requireAdmin).Patch("/course/{courseId}", s.handlePatchCourse)
	r.With(s.authMiddleware, s.requireAdmin).Delete("/course/{courseId}", s.handleDeleteCourse)

	r.With(s.authMiddleware).Post("/course/{courseId}/enroll", s.handleEnroll)
	r.With(s.authMiddleware).Get("/course/{courseId}/events", s.handleCourseEvents)
	r.With(s.authMiddleware, s.requireAdmin).Get("/course/{courseId}/students", s.handleCourseStudents)
	r.With(s.authMiddleware, s.requireAdmin).Post("/course/{courseId}/mentors/assign", s.handleAssignMentors)
	r.With(s.authMiddleware, s.requireSelfOrAdmin).Get("/course/{courseId}/{userId}/assignments", s.handleStudentAssignments)
	r.With(s.authMiddleware, s.requireSelfOrAdmin).Get("/course/{courseId}/{userId}/tasks", s.handleStudentTasks)

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !claimsFromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireSelfOrAdmin lets students read only their own {userId} views.
func (s *Server) requireSelfOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if !claims.IsAdmin() && claims.UserID != chi.URLParam(r, "userId") {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
