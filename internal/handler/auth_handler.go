package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
	"github.com/tiagofur/ordo-todo-sub018/internal/service"
)

// AuthHandler hands out the bearer tokens session uploads are signed with.
type AuthHandler struct {
	auth *service.AuthService
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsFunc func(ctx context.Context, email, password string) (*service.AuthResult, *apperrors.APIError)

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(c *gin.Context) {
	authenticate(c, h.auth.Register, http.StatusCreated)
}

func (h *AuthHandler) Login(c *gin.Context) {
	authenticate(c, h.auth.Login, http.StatusOK)
}

func authenticate(c *gin.Context, fn credentialsFunc, status int) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	result, apiErr := fn(c.Request.Context(), req.Email, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(status, result)
}
