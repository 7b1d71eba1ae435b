package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/snapbuy/snapbuy/pkg/api/response"
	"github.com/snapbuy/snapbuy/pkg/logger"
)

// Recovery converts handler panics into 500 responses instead of
// tearing down the connection. The panic value and stack are logged.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}

				log.Error("Panic recovered",
					"error", v,
					"path", r.URL.Path,
					"method", r.Method,
					"stack", string(debug.Stack()),
				)

				requestID := r.Header.Get("X-Request-ID")
				if requestID == "" {
					requestID = "unknown"
				}
				response.Error(w,
					http.StatusInternalServerError,
					response.ErrCodeInternalServer,
					fmt.Sprintf("Internal server error: %v", v),
					requestID,
				)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
