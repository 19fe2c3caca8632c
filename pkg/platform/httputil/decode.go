package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/requestcontext"
)

// Validatable request bodies reject themselves before reaching a service.
type Validatable interface {
	Validate() error
}

// Normalizable request bodies canonicalize their fields before validation.
type Normalizable interface {
	Normalize()
}

// DecodeJSON reads exactly one JSON object of type T from the body. Unknown
// fields, trailing data and an empty body are rejected. On failure the error
// reply is already written and ok is false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&req)
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON object")
	}
	if err == nil {
		return &req, true
	}

	ctx := r.Context()
	logger.WarnContext(ctx, "rejected request body",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request_too_large"})
	case errors.Is(err, io.EOF):
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is required"))
	default:
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
	}
	return nil, false
}

// DecodeAndPrepare decodes T, then normalizes and validates it when T
// implements those hooks. Validation errors without a domain code become
// CodeValidation.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	if n, isNorm := any(req).(Normalizable); isNorm {
		n.Normalize()
	}
	v, isValid := any(req).(Validatable)
	if !isValid {
		return req, true
	}
	if err := v.Validate(); err != nil {
		ctx := r.Context()
		logger.WarnContext(ctx, "request failed validation",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, err.Error()))
		return nil, false
	}
	return req, true
}
