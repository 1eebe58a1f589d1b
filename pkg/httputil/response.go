package httputil

import (
	"encoding/json"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/openveil/openveil/pkg/apierr"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteYAML writes a YAML response with the given status code
func WriteYAML(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/x-yaml; charset=utf-8")
	w.WriteHeader(status)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// WriteError writes the {code, message, data:{status}} body for err. Errors
// that are not *apierr.Error become a generic 500.
func WriteError(w http.ResponseWriter, err error) *apierr.Error {
	apiErr := apierr.As(err)
	if apiErr == nil {
		apiErr = apierr.Internal(nil)
	}
	WriteJSON(w, apiErr.Status, apiErr.Body())
	return apiErr
}

// WriteTooManyRequests writes a 429 rate_limited error
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, apierr.New(http.StatusTooManyRequests, apierr.CodeRateLimited, message))
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
