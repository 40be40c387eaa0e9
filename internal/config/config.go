package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// minTokenSecretLen is the shortest accepted HS256 signing secret
const minTokenSecretLen = 32

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Sessions
	TokenSecret  string        // HS256 secret for session tokens (required)
	SessionTTL   time.Duration // lifetime of a session (default: 7 days)
	CookieName   string        // cookie carrying the session token
	CookieSecure bool          // set the Secure flag on the session cookie
	SignInBurst  int           // sign-in attempts allowed per IP before throttling
	SignInPerMin int           // sign-in attempts refilled per IP per minute

	// Live channel
	AllowedOrigins   []string      // websocket origin patterns (empty = same origin only)
	LiveWriteTimeout time.Duration // per-message websocket write timeout

	// Seed import (optional, empty = disabled)
	SeedFile       string        // path to a Homepage-style bookmarks.yaml
	SeedOwnerEmail string        // user who owns imported bookmarks
	ReloadInterval time.Duration // interval to re-import the seed file (default: 24h)
	SweepInterval  time.Duration // interval to sweep dangling index entries (default: 24h)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SHELF_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SHELF_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SHELF_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SHELF_PRETTY_LOG", true),

		// Sessions
		TokenSecret:  requireEnv("SHELF_TOKEN_SECRET"),
		SessionTTL:   mustDuration("SHELF_SESSION_TTL", 7*24*time.Hour),
		CookieName:   getenv("SHELF_COOKIE_NAME", "shelf_session"),
		CookieSecure: mustBool("SHELF_COOKIE_SECURE", true),
		SignInBurst:  getenvInt("SHELF_SIGNIN_BURST", 5),
		SignInPerMin: getenvInt("SHELF_SIGNIN_PER_MIN", 10),

		// Live channel
		AllowedOrigins:   splitAndTrim(getenv("SHELF_ALLOWED_ORIGINS", "")),
		LiveWriteTimeout: mustDuration("SHELF_LIVE_WRITE_TIMEOUT", 5*time.Second),

		// Seed import
		SeedFile:       getenv("SHELF_SEED_FILE", ""), // Optional, empty = import disabled
		SeedOwnerEmail: getenv("SHELF_SEED_OWNER", ""),
		ReloadInterval: mustDuration("SHELF_RELOAD_SEED_INTERVAL", 24*time.Hour),
		SweepInterval:  mustDuration("SHELF_SWEEP_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:             requireEnv("SHELF_REDIS_ADDR"),
		RedisUser:             getenv("SHELF_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("SHELF_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("SHELF_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("SHELF_REDIS_DB"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("SHELF_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("SHELF_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SHELF_TRUST_PROXY", true),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.TokenSecret = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (c *Config) validate() error {
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("SHELF_REDIS_PASSWORD is required when SHELF_REDIS_PASSWORD_REQUIRED=true")
	}
	if len(c.TokenSecret) < minTokenSecretLen {
		return fmt.Errorf("SHELF_TOKEN_SECRET must be at least %d characters", minTokenSecretLen)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SHELF_SESSION_TTL must be > 0, got %v", c.SessionTTL)
	}
	if c.SeedFile != "" && c.SeedOwnerEmail == "" {
		return fmt.Errorf("SHELF_SEED_OWNER is required when SHELF_SEED_FILE is set")
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
