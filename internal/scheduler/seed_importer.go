package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/sources/homepage"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

// SeedStatus describes the last import run.
type SeedStatus struct {
	LastRun  time.Time
	Total    int // bookmarks in the file
	Imported int // bookmarks created by the last run
	Err      string
}

// SeedImporter imports a Homepage bookmarks.yaml into one user's shelf,
// on start, on interval and on manual trigger. Bookmarks already present
// are left alone, so user edits survive. A deleted seed bookmark comes
// back on the next run.
type SeedImporter struct {
	loader        *homepage.Loader
	store         *redisstore.BookmarkStore
	users         *redisstore.UserStore
	ownerEmail    string
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
	now           func() time.Time

	mu     sync.Mutex
	status SeedStatus
}

func NewSeedImporter(
	seedFile string,
	ownerEmail string,
	store *redisstore.BookmarkStore,
	users *redisstore.UserStore,
	log logger.Logger,
	interval time.Duration,
) *SeedImporter {
	return &SeedImporter{
		loader:        homepage.NewLoader(seedFile),
		store:         store,
		users:         users,
		ownerEmail:    ownerEmail,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
		now:           time.Now,
	}
}

// Start imports once, then keeps importing on interval (if > 0) and on
// Trigger. A failed first import is logged, not fatal: the owner may
// not have registered yet.
func (si *SeedImporter) Start(ctx context.Context) {
	if _, err := si.Import(ctx); err != nil {
		si.logger.Warn("initial seed import failed", logger.Error(err))
	}

	go func() {
		var tick <-chan time.Time
		if si.interval > 0 {
			ticker := time.NewTicker(si.interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-tick:
				if _, err := si.Import(ctx); err != nil {
					si.logger.Error("seed import failed", logger.Error(err))
				}
			case <-si.manualTrigger:
				si.logger.Info("manual seed import triggered")
				if _, err := si.Import(ctx); err != nil {
					si.logger.Error("seed import failed", logger.Error(err))
				}
			case <-si.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the importer
func (si *SeedImporter) Stop() {
	close(si.stopCh)
}

// Trigger asks for an import. Returns false if one is already pending.
func (si *SeedImporter) Trigger() bool {
	select {
	case si.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status returns the outcome of the last run.
func (si *SeedImporter) Status() SeedStatus {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.status
}

// Import runs one import and returns how many bookmarks were created.
func (si *SeedImporter) Import(ctx context.Context) (int, error) {
	total, created, err := si.importOnce(ctx)

	st := SeedStatus{LastRun: si.now(), Total: total, Imported: created}
	if err != nil {
		st.Err = err.Error()
	}
	si.mu.Lock()
	si.status = st
	si.mu.Unlock()

	return created, err
}

func (si *SeedImporter) importOnce(ctx context.Context) (total, created int, err error) {
	owner, err := si.users.GetByEmail(ctx, si.ownerEmail)
	if err != nil {
		if errors.Is(err, redisstore.ErrUserNotFound) {
			return 0, 0, fmt.Errorf("seed owner %s is not registered", si.ownerEmail)
		}
		return 0, 0, err
	}

	config, err := si.loader.Load()
	if err != nil {
		return 0, 0, err
	}
	bookmarks, err := homepage.Map(config, owner.ID, si.now())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to map bookmarks: %w", err)
	}

	for _, b := range bookmarks {
		ok, err := si.store.ImportIfMissing(ctx, b)
		if err != nil {
			return len(bookmarks), created, err
		}
		if ok {
			created++
		}
	}

	si.logger.Info("seed import done",
		logger.String("file", si.loader.Path()),
		logger.Int("total", len(bookmarks)),
		logger.Int("created", created))
	return len(bookmarks), created, nil
}
