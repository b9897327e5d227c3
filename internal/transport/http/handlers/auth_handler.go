package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/vedran77/dreamnest/internal/logging"
	"github.com/vedran77/dreamnest/internal/metrics"
	"github.com/vedran77/dreamnest/internal/service"
	"github.com/vedran77/dreamnest/internal/session"
	"github.com/vedran77/dreamnest/pkg/validator"
)

const invalidCredentialsMessage = "Invalid email/username or password"

type AuthHandler struct {
	authService *service.AuthService
	metrics     *metrics.Metrics
	log         *logrus.Logger
}

func NewAuthHandler(authService *service.AuthService, m *metrics.Metrics, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, metrics: m, log: log}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateRegister(input.Username, input.Email, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Register(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email is already registered")
		case errors.Is(err, service.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "Username is already taken")
		case errors.Is(err, service.ErrUserExists):
			writeError(w, http.StatusConflict, "USER_EXISTS", "User already exists")
		default:
			logging.FromContext(r.Context(), h.log).WithError(err).Error("register")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Error registering user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateLogin(input.Identifier, input.Password); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	resp, err := h.authService.Login(r.Context(), input)
	if err != nil {
		// Unknown identifier and wrong password must look the same to the caller.
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			h.metrics.RecordLogin("failure")
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", invalidCredentialsMessage)
		} else {
			h.metrics.RecordLogin("error")
			logging.FromContext(r.Context(), h.log).WithError(err).Error("login")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Error logging in")
		}
		return
	}

	h.metrics.RecordLogin("success")
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	resp, err := h.authService.Refresh(r.Context(), sess)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Account no longer exists")
			return
		}
		logging.FromContext(r.Context(), h.log).WithError(err).Error("refresh token")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	if err := h.authService.Logout(r.Context(), sess); err != nil {
		logging.FromContext(r.Context(), h.log).WithError(err).Error("logout")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeMessage(w, "Logged out")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	user, err := h.authService.Me(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		logging.FromContext(r.Context(), h.log).WithError(err).Error("me")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
