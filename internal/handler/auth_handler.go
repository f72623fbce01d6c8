package handler

import (
	"errors"
	"net/http"

	"lims/internal/middleware"
	"lims/internal/service"
	"lims/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	userService service.UserService
	loginLimit  gin.HandlerFunc
}

func NewAuthHandler(authService service.AuthService, userService service.UserService, loginLimit gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		loginLimit:  loginLimit,
	}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/login", h.loginLimit, h.Login)
	router.POST("/refresh", h.RefreshToken)
	router.POST("/logout", h.Logout)
	router.GET("/me", middleware.RequireAuth(), h.GetMe)
}

// Login handles POST /login to authenticate and return a token pair
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning access and refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.TokenPairResponse}
// @Failure      401      {object}  response.Response
// @Failure      423      {object}  response.Response
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	pair, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		status := statusForError(err)
		msg := messageForError(err)
		// Surface the unlock time only when the service chose to expose it.
		var locked *service.AccountLockedError
		if errors.As(err, &locked) {
			msg = locked.Error()
		}
		c.JSON(status, response.Error(status, msg))
		return
	}

	middleware.SetTokenCookies(c, pair.AccessToken, pair.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pair))
}

// RefreshToken handles POST /refresh to rotate the refresh token
// @Summary      Refresh token
// @Description  Rotates a valid refresh token and issues a new access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshRequest   true  "Refresh Token"
// @Success      200      {object}  response.Response{data=service.TokenPairResponse}
// @Failure      401      {object}  response.Response
// @Router       /refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	// Try reading refresh_token from cookie first, fallback to body
	refreshToken, cookieErr := c.Cookie("refresh_token")
	var req service.RefreshRequest

	if cookieErr != nil || refreshToken == "" {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
			return
		}
	} else {
		req = service.RefreshRequest{RefreshToken: refreshToken}
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	middleware.SetTokenCookies(c, pair.AccessToken, pair.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pair))
}

// Logout handles POST /logout to revoke the refresh token and clear cookies
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		var req service.RefreshRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken != "" {
		if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
			status := statusForError(err)
			c.JSON(status, response.Error(status, messageForError(err)))
			return
		}
	}

	middleware.ClearTokenCookies(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Logged out"))
}

// GetMe handles GET /me to return the current authenticated user
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      401      {object}  response.Response
// @Router       /me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}
