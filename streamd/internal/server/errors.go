package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"worker/core/errs"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Status int    `json:"status"`
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	e := errs.From(err)
	status := errs.HTTPStatus(e)

	event := logger.Debug()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(e).Str("kind", e.Kind().String()).Int("status", status).Msg("Request failed")

	writeJSON(w, logger, status, errorBody{Error: e.Error(), Kind: e.Kind().String(), Status: status})
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error().Err(errs.FromJSON(err)).Msg("Failed to encode response")
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error","kind":"serialization","status":500}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}
