// Package rest exposes the service over HTTP: registration and login under
// /api/auth, and token-protected user management under /api/users.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/avdeev/usersvc/internal/logging"
	"github.com/avdeev/usersvc/internal/server/services"
)

type Server struct {
	address string
	logger  logging.Logger
	users   *services.UserService
}

func NewServer(address string, l logging.Logger, us *services.UserService) *Server {
	return &Server{
		address: address,
		logger:  l.With("module", "rest_server"),
		users:   us,
	}
}

// Handler builds the gin engine with all routes attached. Exposed separately
// from Run so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/ping", s.ping)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", s.register)
		auth.POST("/login", s.login)
	}

	users := r.Group("/api/users")
	users.Use(s.authRequired())
	{
		users.POST("", s.createUser)
		users.GET("", s.listUsers)
		users.GET("/:id", s.getUser)
		users.PUT("/:id", s.updateUser)
		users.DELETE("/:id", s.deleteUser)
	}

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
