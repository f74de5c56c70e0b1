package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON error envelope of the API
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSONError writes the JSON error envelope
func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

const errorFragment = `<div class="bg-red-50 border border-red-200 text-red-800 p-4 rounded-lg" role="alert">
	<p class="text-sm">Something went wrong. Please try again.</p>
</div>`

// ErrorHandlingMiddleware recovers panics and answers in the caller's format
func ErrorHandlingMiddleware(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.WithFields(logrus.Fields{
						"subsystem": "http",
						"method":    r.Method,
						"path":      r.URL.Path,
						"panic":     rec,
						"stack":     string(debug.Stack()),
					}).Error("recovered from panic")

					switch {
					case IsAPIRequest(r):
						WriteJSONError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
					case IsHTMXRequest(r):
						w.Header().Set("Content-Type", "text/html; charset=utf-8")
						w.WriteHeader(http.StatusInternalServerError)
						w.Write([]byte(errorFragment))
					default:
						http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// NotFoundHandler handles 404 errors
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsAPIRequest(r) {
			WriteJSONError(w, http.StatusNotFound, "not_found", "Not found")
			return
		}
		http.Error(w, "Page not found", http.StatusNotFound)
	})
}
