package httpsvc

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

// Значения поля error в теле ответа.
const (
	kindNotFound     = "not_found"
	kindValidation   = "validation_error"
	kindInvalidState = "invalid_state"
	kindInternal     = "internal_error"
)

var (
	errMalformedBody = errors.New("malformed request body")
	errInvalidID     = errors.New("invalid id")
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify сопоставляет доменную ошибку с HTTP-статусом и видом ошибки.
func classify(err error) (int, string) {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound, kindNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest, kindValidation
	case domain.IsInvalidState(err):
		return http.StatusBadRequest, kindInvalidState
	default:
		return http.StatusInternalServerError, kindInternal
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	message := err.Error()

	entry := h.logger.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).WithError(err)
	if status == http.StatusInternalServerError {
		entry.Error("request failed")
		message = "internal server error"
	} else {
		entry.Debug("request rejected")
	}

	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
