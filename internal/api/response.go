package api

import (
	"encoding/json"
	"net/http"

	apperrors "affiliate-marketplace/internal/common/errors"
)

type successEnvelope struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

type errorEnvelope struct {
	Status  string                 `json:"status"`
	Code    apperrors.ErrorCode    `json:"code"`
	Message string                 `json:"message"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, successEnvelope{Status: "success", Data: data})
}

func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorEnvelope{
		Status:  "error",
		Code:    apperrors.ErrCodeInternal,
		Message: "internal server error",
	})
}

// writeError renders err as the error envelope. Anything that maps to 500 is
// logged in full and answered without details.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.AsStandard(err)
	status := apperrors.HTTPStatus(stdErr)

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"requestId": requestIDFromContext(r.Context()),
			"method":    r.Method,
			"path":      r.URL.Path,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		if status == http.StatusInternalServerError {
			writeInternal(w)
			return
		}
		writeJSON(w, status, errorEnvelope{Status: "error", Code: stdErr.Code, Message: stdErr.Message})
		return
	}

	writeJSON(w, status, errorEnvelope{
		Status:  "error",
		Code:    stdErr.Code,
		Message: stdErr.Message,
		Errors:  stdErr.Fields,
	})
}
