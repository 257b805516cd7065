// pkg/middleware/recover.go
package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"parapet/pkg/problems"
)

// Recover catches panics at the boundary and reports a generic 500 without
// leaking internal detail.
func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorw("panic", "err", rec, "path", r.URL.Path, "stack", string(debug.Stack()))
					problems.Write(w, problems.Internal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
