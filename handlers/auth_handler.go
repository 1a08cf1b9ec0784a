package handlers

import (
	"net/http"

	"LiveDesk/models"
	"LiveDesk/services"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	agent, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
	}

	resp, err := h.authService.GenerateTokens(agent)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate tokens",
		})
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	claims, err := h.authService.ValidateToken(req.RefreshToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid refresh token",
		})
	}

	var agent models.Agent
	if err := h.authService.Db.First(&agent, claims.AgentID).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "agent not found",
		})
	}

	resp, err := h.authService.GenerateTokens(&agent)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate tokens",
		})
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) GetCurrentAgent(c echo.Context) error {
	agent := c.Get("agent").(*models.Agent)
	return c.JSON(http.StatusOK, agent)
}

// 创建坐席账号（仅管理员）
func (h *AuthHandler) RegisterAgent(c echo.Context) error {
	var req struct {
		Email       string `json:"email"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	agent, err := h.authService.Register(req.Email, req.Username, req.Password, req.DisplayName)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create agent",
		})
	}

	return c.JSON(http.StatusCreated, agent)
}
