package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avdeev/usersvc/internal/common"
)

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.users.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "user registered", "email", req.Email)
	c.JSON(http.StatusOK, AuthResponse{Token: res.Token, Email: res.Email, Name: res.Name})
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: res.Token, Email: res.Email, Name: res.Name})
}

func (s *Server) createUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := s.users.Create(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (s *Server) listUsers(c *gin.Context) {
	list, err := s.users.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	result := make([]UserResponse, 0, len(list))
	for _, u := range list {
		result = append(result, toUserResponse(u))
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := s.userIDParam(c)
	if !ok {
		return
	}

	user, err := s.users.GetByID(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) updateUser(c *gin.Context) {
	id, ok := s.userIDParam(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := s.users.Update(c.Request.Context(), id, req.Email, req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := s.userIDParam(c)
	if !ok {
		return
	}

	if err := s.users.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// userIDParam parses and validates the :id path parameter.
func (s *Server) userIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return "", false
	}
	return id, true
}

// writeError maps service errors to transport status codes. Token and
// credential failures are reported with uniform bodies; details are logged.
func (s *Server) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, common.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "email already registered"})
	case errors.Is(err, common.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, common.ErrMalformedToken),
		errors.Is(err, common.ErrInvalidSignature),
		errors.Is(err, common.ErrTokenExpired):
		s.logger.Warn(ctx, "token rejected", "reason", err.Error())
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	default:
		s.logger.Error(ctx, "request failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
