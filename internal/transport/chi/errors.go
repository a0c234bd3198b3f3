package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, ErrorCodeFileUpload, ""),
		sentinelHandler(domain.ErrValidation, http.StatusUnprocessableEntity, ErrorCodeValidation, ""),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound, "resource not found"),
		sentinelHandler(domain.ErrIngestInProgress, http.StatusConflict, ErrorCodeDataProcessing,
			domain.ErrIngestInProgress.Error()),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, ErrorCodeConflict,
			"file already exists, set overwrite=true to replace it"),
		sentinelHandler(domain.ErrBudgetExceeded, http.StatusTooManyRequests, ErrorCodeBudgetExceeded,
			"token budget exceeded, try again after the budget resets"),
		sentinelHandler(domain.ErrExternalService, http.StatusBadGateway, ErrorCodeExternalService,
			"external service error, please try again later"),
		maxBytesHandler,
	}
}

// sentinelHandler matches a single sentinel. An empty msg surfaces the validation
// message carried by the error.
func sentinelHandler(sentinel error, status int, code ErrorCode, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		text := msg
		if text == "" {
			text = validationMessage(err)
		}
		writeError(w, status, code, text)
		return true
	}
}

// maxBytesHandler reports a request body cut off by http.MaxBytesReader.
func maxBytesHandler(w http.ResponseWriter, err error) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeFileUpload, "request body too large")
	return true
}

func validationMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return "invalid request"
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}

// BadRequestHandler answers parameter binding failures with a JSON 400.
func BadRequestHandler(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorCode: code,
		Timestamp: time.Now().UTC(),
	})
}
