package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserIDKey = "userID"
	ctxRoleKey   = "role"
)

// authRequired validates the Bearer token on the request and stores the
// verified subject and role in the gin context. Every failure produces the
// same "unauthorized" body; the concrete reason goes to the log only.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			s.unauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.unauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := s.users.VerifyToken(parts[1])
		if err != nil {
			s.unauthorized(c, err.Error())
			return
		}

		c.Set(ctxUserIDKey, claims.Subject)
		c.Set(ctxRoleKey, claims.Role)
		c.Next()
	}
}

func (s *Server) unauthorized(c *gin.Context, reason string) {
	s.logger.Warn(c.Request.Context(), "request rejected", "path", c.Request.URL.Path, "reason", reason)
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
}

// requestLogger logs one line per handled request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Info(c.Request.Context(), "request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
