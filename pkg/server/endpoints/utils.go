package endpoints

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/wiretap"
)

// ErrorBody is the "error" member of a failed response.
type ErrorBody struct {
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code,omitempty"`
	Token   string `json:"token,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func respondWithError(w http.ResponseWriter, code int, payload interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"error": payload})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		response, _ = json.Marshal(map[string]interface{}{"error": ErrorBody{Message: err.Error()}})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// statusFor maps an inspection error to an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, wiretap.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, wiretap.ErrUntrusted):
		return http.StatusForbidden
	case errors.Is(err, wiretap.ErrMalformedHeader):
		return http.StatusBadRequest
	}
	if _, ok := tokens.KindOf(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorBody(err error) ErrorBody {
	body := ErrorBody{Code: wiretap.ErrorCode(err), Message: err.Error()}

	var tokErr *tokens.Error
	if errors.As(err, &tokErr) {
		body.Kind = tokErr.Kind.String()
		body.Token = string(tokErr.Token)
		body.Field = tokErr.Field
	}
	return body
}

func respondWithInspectError(w http.ResponseWriter, err error) {
	respondWithError(w, statusFor(err), errorBody(err))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
