package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/live"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	AllowedHosts []string // Host headers allowed to access the server
	AllowedCIDRS []string // IPs allowed to access healthz/readyz/infra/reload
	TrustProxy   bool     // true if running behind a trusted reverse proxy (e.g., cloudflared)

	RedisClient *redis.Client
	Bookmarks   *redisstore.BookmarkStore
	Auth        *auth.Service
	Live        *live.Hub
	Seed        *scheduler.SeedImporter // nil when no seed file is configured

	CookieName   string
	CookieSecure bool
	SignInBurst  int // sign-in attempts allowed per IP before throttling
	SignInPerMin int
}
