package middleware

import (
	"net/http"

	"github.com/tierhub/backend/internal/contextkeys"
	"github.com/tierhub/backend/internal/handler"
)

// StaffOnly ensures the caller has the 'staff' or 'admin' role. Must be
// used AFTER Auth, which sets contextkeys.UserRole in context.
func StaffOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(contextkeys.UserRole).(string)
		if !ok || (role != "staff" && role != "admin") {
			handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: staff access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
