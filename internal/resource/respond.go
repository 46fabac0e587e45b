package resource

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"CrudAPI/internal/logger"
	"CrudAPI/internal/query"
	"CrudAPI/internal/serializer"
	"CrudAPI/internal/store"
)

// NotFoundMessage is the body of every 404 produced by the handlers.
const NotFoundMessage = "Resource not found in the database!"

var (
	errNotFound         = errors.New(NotFoundMessage)
	errMethodNotAllowed = errors.New("method not allowed")
)

// bodyError marks an unreadable request body.
type bodyError struct{ err error }

func (e *bodyError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *bodyError) Unwrap() error { return e.err }

// statusFor maps handler errors to HTTP status codes.
func statusFor(err error) int {
	var (
		mismatch *serializer.PrimaryKeyMismatchError
		body     *bodyError
	)
	switch {
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case query.IsClientError(err), errors.As(err, &mismatch), errors.As(err, &body):
		return http.StatusBadRequest
	case store.IsConflict(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("write_response_failed", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	fields := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"error":  err.Error(),
	}
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request_failed", fields)
		msg = http.StatusText(status)
	} else {
		log.Warn("request_rejected", fields)
	}
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON object, or form fields when the request is form encoded.
func decodeBody(r *http.Request) (map[string]any, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || strings.HasPrefix(ct, "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, &bodyError{err}
		}
		out := make(map[string]any, len(r.PostForm))
		for k, vals := range r.PostForm {
			if len(vals) == 1 {
				out[k] = vals[0]
				continue
			}
			items := make([]any, len(vals))
			for i, v := range vals {
				items[i] = v
			}
			out[k] = items
		}
		return out, nil
	}
	data, err := query.DecodeObject(r.Body)
	if err != nil {
		return nil, &bodyError{err}
	}
	return data, nil
}

// NotFound writes the standard 404 body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, errNotFound)
}

// MethodNotAllowed writes a 405 body.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, errMethodNotAllowed)
}
