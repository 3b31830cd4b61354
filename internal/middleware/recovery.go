package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/models"
	"github.com/driftware/driftbox/internal/utils"
)

// RecoveryMiddleware converts panics into JSON 500 responses and records
// them in the error log for admin review. errLog may be nil, in which
// case panics are only logged.
//
// http.ErrAbortHandler is re-raised so deliberate aborts keep their
// net/http semantics.
func RecoveryMiddleware(errLog *errorlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				stack := debug.Stack()
				slog.Error("panic recovered",
					"error", v,
					"path", r.URL.Path,
					"method", r.Method,
					"stack", string(stack),
				)

				if errLog != nil {
					ip := utils.GetClientIP(r)
					errLog.Capture(&models.ErrorLogEntry{
						Severity:  models.SeverityCritical,
						ErrorType: "panic",
						Message:   fmt.Sprintf("%v", v),
						Stack:     string(stack),
						Route:     r.URL.Path,
						Method:    r.Method,
						IPAddress: &ip,
					})
				}

				writeError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
