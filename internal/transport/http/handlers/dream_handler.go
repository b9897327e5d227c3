package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vedran77/dreamnest/internal/logging"
	"github.com/vedran77/dreamnest/internal/metrics"
	"github.com/vedran77/dreamnest/internal/service"
	"github.com/vedran77/dreamnest/internal/transport/http/middleware"
)

type DreamHandler struct {
	dreamService *service.DreamService
	metrics      *metrics.Metrics
	log          *logrus.Logger
}

func NewDreamHandler(dreamService *service.DreamService, m *metrics.Metrics, log *logrus.Logger) *DreamHandler {
	return &DreamHandler{dreamService: dreamService, metrics: m, log: log}
}

func (h *DreamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateDreamInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	// userId is optional; when sent it has to be the caller.
	if input.UserID != nil && *input.UserID != userID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only record your own dreams")
		return
	}

	dream, err := h.dreamService.Create(r.Context(), userID, input.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, "MISSING_CONTENT", "Dream content is required")
		case errors.Is(err, service.ErrContentTooLong):
			writeError(w, http.StatusBadRequest, "CONTENT_TOO_LONG", "Dream content is too long")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			logging.FromContext(r.Context(), h.log).WithError(err).Error("create dream")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Error creating dream")
		}
		return
	}

	h.metrics.DreamCreated()
	writeJSON(w, http.StatusOK, dream)
}

func (h *DreamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	ownerStr := r.URL.Query().Get("userId")
	if ownerStr == "" {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "User ID is required")
		return
	}
	ownerID, err := uuid.Parse(ownerStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	dreams, err := h.dreamService.List(r.Context(), userID, ownerID)
	if err != nil {
		if errors.Is(err, service.ErrNotDreamOwner) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only view your own dreams")
			return
		}
		logging.FromContext(r.Context(), h.log).WithError(err).Error("list dreams")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Error fetching dreams")
		return
	}

	writeJSON(w, http.StatusOK, dreams)
}

func (h *DreamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	dreamID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid dream ID")
		return
	}

	if err := h.dreamService.Delete(r.Context(), userID, dreamID); err != nil {
		switch {
		case errors.Is(err, service.ErrDreamNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Dream not found")
		case errors.Is(err, service.ErrNotDreamOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only delete your own dreams")
		default:
			logging.FromContext(r.Context(), h.log).WithError(err).Error("delete dream")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Error deleting dream")
		}
		return
	}

	h.metrics.DreamDeleted()
	writeMessage(w, "Dream deleted successfully")
}
