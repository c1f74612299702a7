package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"studenthub/student-api/internal/auth"
	"studenthub/student-api/internal/config"
	"studenthub/student-api/internal/model"
	"studenthub/student-api/internal/repository"
)

type Server struct {
	cfg      config.Config
	store    repository.Store
	sessions *auth.SessionManager
	validate *validator
	log      zerolog.Logger
}

func NewServer(cfg config.Config, store repository.Store, sessions *auth.SessionManager, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		validate: newValidator(),
		log:      log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.requireToken).Get("/profile", s.handleProfile)
			r.With(s.requireToken).Post("/logout", s.handleLogout)
			r.With(s.requireToken).Post("/refresh", s.handleRefresh)
		})

		r.Route("/students", func(r chi.Router) {
			r.Get("/", s.handleListStudents)
			r.Post("/", s.handleCreateStudent)
			r.Get("/{studentID}", s.handleGetStudent)
			r.Put("/{studentID}", s.handleReplaceStudent)
			r.Patch("/{studentID}", s.handlePatchStudent)
			r.Delete("/{studentID}", s.handleDeleteStudent)
		})
	})

	return r
}

type registerRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,numeric,len=10"`
	Language  string `json:"language" validate:"required,oneof=Spanish English"`
	Password  string `json:"password" validate:"required"`
	CPassword string `json:"c_password" validate:"required,eqfield=Password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := s.validate.check(req); errs != nil {
		writeValidationErrors(w, http.StatusUnprocessableEntity, errs)
		return
	}

	student, err := s.sessions.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Language: req.Language,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			writeValidationErrors(w, http.StatusUnprocessableEntity, fieldErrors{
				"email": {"The email has already been taken."},
			})
			return
		}
		s.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, studentResponse{
		Student: student,
		Message: "User registered successfully.",
		Status:  http.StatusOK,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.authError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		ExpiresIn:   session.ExpiresIn,
		Message:     "User login successfully",
		Status:      http.StatusOK,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	student, err := s.sessions.Profile(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		s.authError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, studentResponse{
		Student: student,
		Message: "User data retrieved successfully",
		Status:  http.StatusOK,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		s.authError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User logout successfully")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Refresh(r.Context(), tokenFromContext(r.Context()))
	if err != nil {
		s.authError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		ExpiresIn:   session.ExpiresIn,
		Message:     "Token refreshed successfully",
		Status:      http.StatusOK,
	})
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.store.ListStudents(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studentsResponse{
		Students: students,
		Status:   http.StatusOK,
	})
}

type createStudentRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,numeric,len=10"`
	Language string `json:"language" validate:"required,oneof=Spanish English"`
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := s.validate.check(req); errs != nil {
		writeValidationErrors(w, http.StatusBadRequest, errs)
		return
	}

	now := time.Now().UTC()
	student := model.Student{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(strings.ToLower(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		Language:  req.Language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateStudent(r.Context(), student); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			writeValidationErrors(w, http.StatusBadRequest, fieldErrors{
				"email": {"The email has already been taken."},
			})
			return
		}
		s.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, studentResponse{
		Student: student,
		Status:  http.StatusCreated,
	})
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	student, err := s.store.GetStudentByID(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Student not found")
			return
		}
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studentResponse{
		Student: student,
		Status:  http.StatusOK,
	})
}

func (s *Server) handleReplaceStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := s.validate.check(req); errs != nil {
		writeValidationErrors(w, http.StatusBadRequest, errs)
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	phone := strings.TrimSpace(req.Phone)
	update := repository.StudentUpdate{
		Name:     &name,
		Email:    &email,
		Phone:    &phone,
		Language: &req.Language,
	}
	s.applyStudentUpdate(w, r, update)
}

type patchStudentRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,numeric,len=10"`
	Language *string `json:"language,omitempty" validate:"omitempty,oneof=Spanish English"`
}

func (s *Server) handlePatchStudent(w http.ResponseWriter, r *http.Request) {
	var req patchStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := s.validate.check(req); errs != nil {
		writeValidationErrors(w, http.StatusBadRequest, errs)
		return
	}

	update := repository.StudentUpdate{
		Name:     req.Name,
		Phone:    req.Phone,
		Language: req.Language,
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		update.Email = &email
	}
	s.applyStudentUpdate(w, r, update)
}

func (s *Server) applyStudentUpdate(w http.ResponseWriter, r *http.Request, update repository.StudentUpdate) {
	student, err := s.store.UpdateStudent(r.Context(), chi.URLParam(r, "studentID"), update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "Student not found")
		case errors.Is(err, repository.ErrDuplicateEmail):
			writeValidationErrors(w, http.StatusBadRequest, fieldErrors{
				"email": {"The email has already been taken."},
			})
		default:
			s.serverError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, studentResponse{
		Student: student,
		Message: "Student updated",
		Status:  http.StatusOK,
	})
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	student, err := s.store.DeleteStudent(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Student not found")
			return
		}
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studentResponse{
		Student: student,
		Status:  http.StatusOK,
	})
}

type tokenKey struct{}

// requireToken only extracts the bearer token; verification happens in the
// session manager, which takes the token as an explicit argument.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), tokenKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) authError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, auth.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

type statusResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type studentResponse struct {
	Student model.Student `json:"student"`
	Message string        `json:"message,omitempty"`
	Status  int           `json:"status"`
}

type studentsResponse struct {
	Students []model.Student `json:"students"`
	Status   int             `json:"status"`
}

type sessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Message     string `json:"message"`
	Status      int    `json:"status"`
}

type validationResponse struct {
	Message string      `json:"message"`
	Errors  fieldErrors `json:"errors"`
	Status  int         `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusResponse{Message: message, Status: status})
}

func writeValidationErrors(w http.ResponseWriter, status int, errs fieldErrors) {
	writeJSON(w, status, validationResponse{
		Message: "Validation Error.",
		Errors:  errs,
		Status:  status,
	})
}
