package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the core consumes. It is loaded once in main
// and passed explicitly into constructors so there is no ambient state.
type Config struct {
	Port        string
	DatabaseDSN string

	JWTSecret      string
	AccessTokenTTL time.Duration

	// Account lockout policy
	LockoutThreshold int
	LockoutDuration  time.Duration
	// ExposeUnlockTime controls whether a locked-account response carries the
	// unlock timestamp. Leaking lockout timing is a deliberate trade-off: it
	// helps legitimate users but tells an attacker exactly when to resume.
	ExposeUnlockTime bool

	RefreshTokenTTL time.Duration
	// TokenPurgeInterval is the cadence of the expired-token sweep. Expiry is
	// enforced lazily on validation; the sweep only trims dead rows.
	TokenPurgeInterval time.Duration
	AdminRoleName      string

	// Login rate limiting (per client IP)
	LoginRatePerSecond float64
	LoginBurst         int

	// StoreTimeout bounds every access to the backing store; a store that
	// exceeds it fails the operation with a retryable error instead of hanging.
	StoreTimeout time.Duration

	// HierarchyCacheTTL bounds the staleness window of cached group-hierarchy
	// resolutions. Writes to groups or memberships also invalidate eagerly.
	HierarchyCacheTTL time.Duration
}

// Load reads configuration from the environment, falling back to development
// defaults. godotenv is loaded by main before this runs.
func Load() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseDSN: buildDSN(),

		JWTSecret:      getEnv("JWT_SECRET", "default_super_secret_key"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),

		LockoutThreshold: getEnvInt("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:  getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),
		ExposeUnlockTime: getEnvBool("EXPOSE_UNLOCK_TIME", false),

		RefreshTokenTTL:    getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		TokenPurgeInterval: getEnvDuration("TOKEN_PURGE_INTERVAL", time.Hour),
		AdminRoleName:      getEnv("ADMIN_ROLE_NAME", "Admin"),

		LoginRatePerSecond: getEnvFloat("LOGIN_RATE", 1),
		LoginBurst:         getEnvInt("LOGIN_BURST", 5),

		StoreTimeout:      getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		HierarchyCacheTTL: getEnvDuration("HIERARCHY_CACHE_TTL", 30*time.Second),
	}
}

func buildDSN() string {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	name := getEnv("DB_NAME", "lims")
	sslMode := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + name + "?sslmode=" + sslMode
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
