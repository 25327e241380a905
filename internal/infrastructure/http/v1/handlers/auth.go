package handlers

import (
	"github.com/gin-gonic/gin"

	"papyrus/internal/domain/auth"
	"papyrus/internal/infrastructure/http/v1/dto"
)

// AuthHandler serves authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// RegisterRoutes wires the auth endpoints.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/login", h.Login)
	protected.POST("/register", h.Register)
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, token)
}

// Register creates a new user account. Admin only.
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, user.ID)
}
