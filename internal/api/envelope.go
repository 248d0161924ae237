package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/specialistvlad/tensorgrid/internal/compiler"
	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/service"
	"github.com/specialistvlad/tensorgrid/internal/store"
	"github.com/specialistvlad/tensorgrid/internal/training"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       any                 `json:"data"`
	Pagination *service.Pagination `json:"pagination,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// writeError maps err onto a status code. Unclassified errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	env := Envelope{Message: err.Error()}

	var ve *compiler.ValidationError
	if errors.As(err, &ve) {
		env.Data = ve
	}
	if status == http.StatusInternalServerError {
		ctxlog.FromContext(r.Context()).Error("API: Request failed.", "path", r.URL.Path, "error", err)
		env.Message = "Internal server error"
	}
	writeJSON(w, status, env)
}

func statusFor(err error) int {
	var ve *compiler.ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidName),
		errors.Is(err, store.ErrNameTaken),
		errors.Is(err, store.ErrInvalidFile),
		errors.Is(err, service.ErrInvalidConfig),
		errors.Is(err, service.ErrNotConfigured),
		errors.Is(err, training.ErrDatasetLoad),
		errors.Is(err, training.ErrTrainingRuntime):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, training.ErrModelBusy):
		return http.StatusConflict
	case errors.Is(err, training.ErrPoolClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON payload: %v", err)
	}
	return nil
}
