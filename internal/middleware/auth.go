package middleware

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"lims/internal/repository"
	"lims/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	jwtSecret     []byte
	adminRoleName string
	roleRepo      repository.RoleRepository
)

// Init wires the middleware package once at startup.
func Init(secret string, adminRole string, roles repository.RoleRepository) {
	jwtSecret = []byte(secret)
	adminRoleName = adminRole
	roleRepo = roles
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, 3600*24*30, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

func extractToken(c *gin.Context) (string, bool) {
	// Try cookie first, fallback to Authorization header
	tokenString, cookieErr := c.Cookie("access_token")
	if cookieErr == nil && tokenString != "" {
		return tokenString, true
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth validates the JWT access token and stores the principal's user
// id in the request context.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token subject"))
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// --- Admin gate ---

// adminCacheEntry caches the bypass-role probe per user with TTL so the admin
// gate does not hit the store on every request.
type adminCacheEntry struct {
	isAdmin   bool
	expiresAt time.Time
}

var (
	adminCache    sync.Map // uuid.UUID -> adminCacheEntry
	adminCacheTTL = time.Minute
)

// RequireAdmin allows the request through only when the authenticated user
// holds an active assignment of the universal-bypass role. Must be chained
// after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		isAdmin, err := checkAdmin(c, userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Next()
	}
}

func checkAdmin(c *gin.Context, userID uuid.UUID) (bool, error) {
	if entry, ok := adminCache.Load(userID); ok {
		cached := entry.(adminCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.isAdmin, nil
		}
	}

	isAdmin, err := roleRepo.UserHasActiveRole(c.Request.Context(), userID, adminRoleName)
	if err != nil {
		return false, err
	}

	adminCache.Store(userID, adminCacheEntry{
		isAdmin:   isAdmin,
		expiresAt: time.Now().Add(adminCacheTTL),
	})
	return isAdmin, nil
}

// ClearAdminCache removes the cached admin probe for a user (or all users
// when given uuid.Nil). Called after role assignment changes.
func ClearAdminCache(userID uuid.UUID) {
	if userID == uuid.Nil {
		adminCache.Range(func(key, _ interface{}) bool {
			adminCache.Delete(key)
			return true
		})
	} else {
		adminCache.Delete(userID)
	}
}

// UserID extracts the authenticated principal's id set by RequireAuth.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// --- Login rate limiting ---

// LoginRateLimit applies a per-client-IP token bucket to credential
// endpoints, slowing brute-force attempts before they reach the lockout
// state machine.
func LoginRateLimit(perSecond float64, burst int) gin.HandlerFunc {
	var limiters sync.Map // ip -> *rate.Limiter

	return func(c *gin.Context) {
		ip := c.ClientIP()
		v, _ := limiters.LoadOrStore(ip, rate.NewLimiter(rate.Limit(perSecond), burst))
		limiter := v.(*rate.Limiter)

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Error(http.StatusTooManyRequests, "Too many attempts, slow down"))
			return
		}

		c.Next()
	}
}
