package apperror

import (
	"encoding/json"
	"net/http"

	"github.com/Saranwich/longsorn/internal/logger"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON logs the internal error and answers with the safe message only.
func WriteJSON(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	var appErr *Error
	if e, ok := err.(*Error); ok {
		appErr = e
	} else {
		appErr = Wrap(err, ErrInternal)
	}

	if appErr.Internal != nil {
		log.Error("request error",
			"code", appErr.Code,
			"internal_error", appErr.Internal.Error(),
		)
	} else {
		log.Warn("request error", "code", appErr.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:     appErr.Code,
		Code:      appErr.Code,
		Message:   appErr.Message,
		RequestID: logger.RequestID(r.Context()),
	})
}
