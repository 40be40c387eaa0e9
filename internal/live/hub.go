package live

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/reconcile"
)

// Options tunes a Hub.
type Options struct {
	// OriginPatterns are extra origins allowed to open /live. Same-origin
	// is always allowed.
	OriginPatterns []string
	WriteTimeout   time.Duration
}

// Hub accepts /live connections. Each connection gets its own session
// client and reconciler, both torn down when the socket closes.
type Hub struct {
	store  reconcile.BookmarkStore
	auth   *auth.Service
	log    logger.Logger
	opts   Options
	active atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub returns a hub serving bookmarks from store. WriteTimeout defaults to 5s.
func NewHub(store reconcile.BookmarkStore, authSvc *auth.Service, log logger.Logger, opts Options) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		store:  store,
		auth:   authSvc,
		log:    log,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	return int(h.active.Load())
}

// Close ends every open connection. http.Server.Shutdown does not
// reach hijacked connections.
func (h *Hub) Close() {
	h.cancel()
}

// Serve upgrades the request and runs the connection until either side
// closes it. token, when not empty, resumes an existing session.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, token string) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		h.log.Warn("failed to accept websocket", logger.Error(err))
		return
	}
	defer ws.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	h.active.Add(1)
	defer h.active.Add(-1)

	c := newConn(ws, h, h.log.With(logger.String("conn_id", uuid.NewString())))
	err = c.run(ctx, token)

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		_ = ws.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		c.log.Debug("live connection closed by client")
	default:
		c.log.Warn("live connection failed", logger.Error(err))
		_ = ws.Close(websocket.StatusInternalError, "")
	}
}
