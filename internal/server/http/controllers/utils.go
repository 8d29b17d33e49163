package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"reflect"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/rzbill/tablehistory/internal/history"
	"github.com/rzbill/tablehistory/internal/tables"
)

// Helper functions for common HTTP responses

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSONStatus(w, status, errorResponse{Error: message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

// writeCreated writes a 201 Created response with the given data.
func writeCreated(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusCreated, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, history.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrSnapshotUnavailable):
		return http.StatusGone
	case errors.Is(err, tables.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with the status its kind maps to.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// pathParam binds a simple-style path parameter, unescaping it.
func pathParam(r *http.Request, name string, dest any) error {
	return runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), dest)
}

// queryParams binds form-style query parameters. Missing parameters leave
// their destination untouched. A destination that is a pointer to a pointer
// stays nil when its parameter is absent, so zero can be told apart from unset.
func queryParams(q url.Values, params map[string]any) error {
	for name, dest := range params {
		optional := reflect.TypeOf(dest).Elem().Kind() == reflect.Pointer
		if _, ok := q[name]; !ok && !optional {
			continue
		}
		if err := runtime.BindQueryParameter("form", true, !optional, name, q, dest); err != nil {
			return err
		}
	}
	return nil
}
