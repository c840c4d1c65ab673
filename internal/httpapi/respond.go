package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/primary"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`

	// Partial handover failures carry the state an operator needs to resume.
	Stage           string `json:"stage,omitempty"`
	PreviousShiftID string `json:"previous_shift_id,omitempty"`
	ClosingCash     string `json:"closing_cash,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func classify(err error) (int, errorDetail) {
	var (
		partial    *shift.PartialFailureError
		validation *shift.ValidationError
	)
	switch {
	case errors.As(err, &partial):
		return http.StatusInternalServerError, errorDetail{
			Code:            "partial_failure",
			Message:         err.Error(),
			Stage:           partial.Stage,
			PreviousShiftID: partial.PreviousShiftID,
			ClosingCash:     partial.ClosingCash.String(),
		}
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorDetail{Code: "validation", Message: err.Error(), Field: validation.Field}
	case errors.Is(err, shift.ErrValidation):
		return http.StatusBadRequest, errorDetail{Code: "validation", Message: err.Error()}
	case errors.Is(err, shift.ErrNotFound):
		return http.StatusNotFound, errorDetail{Code: "not_found", Message: err.Error()}
	case errors.Is(err, shift.ErrAlreadyEnded):
		return http.StatusConflict, errorDetail{Code: "already_ended", Message: err.Error()}
	case errors.Is(err, shift.ErrConflict):
		return http.StatusConflict, errorDetail{Code: "conflict", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorDetail{Code: "internal", Message: "internal error"}
}

// decodeJSON strictly decodes the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &shift.ValidationError{Field: "body", Reason: "request body is empty"}
		}
		return &shift.ValidationError{Field: "body", Reason: err.Error()}
	}
	if dec.More() {
		return &shift.ValidationError{Field: "body", Reason: "unexpected data after JSON object"}
	}
	return nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &shift.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a non-negative integer", raw)}
	}
	return n, nil
}

// linkStatus maps linkage result codes onto status codes.
func linkStatus(res *primary.LinkResult) int {
	switch res.ErrorCode {
	case "":
		return http.StatusOK
	case primary.CodeInvalidRequest:
		return http.StatusBadRequest
	case primary.CodeSessionNotFound, primary.CodeShiftNotFound:
		return http.StatusNotFound
	case primary.CodeNoActiveShift, primary.CodeAlreadyLinked:
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}
