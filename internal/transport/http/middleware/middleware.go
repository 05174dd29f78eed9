// Package middleware holds the gin middleware stack every route runs
// through: CORS, and a request-scoped trace_id/request_id pair threaded
// into gin.Context for internal/transport/http/response's error envelope.
// Grounded on internal/http/middleware/cors.go and
// internal/http/middleware/request_context.go in the teacher.
package middleware

import (
	corsmw "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CORS mirrors the teacher's local-dev origin allowlist, widened with an
// env override point left for production deploys (SPEC_FULL.md §2: no
// route/CORS shape is spec'd beyond "the HTTP/SSE transport framing
// itself... out of scope" — kept permissive enough for a same-origin SPA).
func CORS(allowOrigins []string) gin.HandlerFunc {
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000", "http://127.0.0.1:5173"}
	}
	return corsmw.New(corsmw.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	})
}

// AttachRequestContext stamps every request with a request_id (and, when
// not already set by an upstream trace middleware, a trace_id) so
// response.RespondError can always report both.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("request_id", uuid.New().String())
		if c.GetString("trace_id") == "" {
			c.Set("trace_id", uuid.New().String())
		}
		c.Next()
	}
}
