package auth

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

// Client is one connection's view of authentication. It holds at most
// one session and tells watchers whenever it changes. A session ends
// on SignOut, on revocation from another connection, or at expiry.
type Client struct {
	svc *Service
	log logger.Logger

	mu        sync.Mutex
	session   *domain.Session
	token     string
	guard     *guard
	watchers  map[uint64]chan *domain.Session
	nextWatch uint64
	closed    bool
}

// NewClient returns a signed-out client backed by svc.
func NewClient(svc *Service, log logger.Logger) *Client {
	return &Client{
		svc:      svc,
		log:      log,
		watchers: make(map[uint64]chan *domain.Session),
	}
}

// Current returns the session, or nil when signed out.
func (c *Client) Current(context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Expired(c.svc.now()) {
		return nil, nil
	}
	return c.session, nil
}

// Token returns the token of the current session, empty when signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Resume adopts an existing session token, typically from a cookie.
func (c *Client) Resume(ctx context.Context, token string) error {
	sess, err := c.svc.Resolve(ctx, token)
	if err != nil {
		return err
	}
	_, err = c.adopt(ctx, sess, token)
	return err
}

// SignIn opens a new session and makes it current. Returns its token.
// A session it replaces is revoked.
func (c *Client) SignIn(ctx context.Context, provider string, creds Credentials) (string, error) {
	sess, token, err := c.svc.SignIn(ctx, provider, creds)
	if err != nil {
		return "", err
	}
	prev, err := c.adopt(ctx, sess, token)
	if err != nil {
		if rerr := c.svc.SignOut(ctx, token); rerr != nil {
			c.log.Warn("failed to revoke unadopted session", logger.Error(rerr))
		}
		return "", err
	}
	if prev != "" && prev != token {
		if err := c.svc.SignOut(ctx, prev); err != nil {
			c.log.Warn("failed to revoke replaced session", logger.Error(err))
		}
	}
	return token, nil
}

// SignOut revokes the current session. Signing out while signed out is a no-op.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return nil
	}
	if err := c.svc.SignOut(ctx, token); err != nil {
		return err
	}
	c.set(nil, "", nil)
	return nil
}

// Watch subscribes to session changes. Unread changes are replaced by newer ones.
func (c *Client) Watch() domain.SessionWatch {
	ch := make(chan *domain.Session, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	w := &watch{client: c, id: c.nextWatch, ch: ch}
	c.nextWatch++
	if c.closed {
		close(ch)
		return w
	}
	c.watchers[w.id] = ch
	return w
}

// Close drops the session locally (without revoking it) and closes all watches.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopGuard()
	c.session = nil
	c.token = ""
	for id, ch := range c.watchers {
		delete(c.watchers, id)
		close(ch)
	}
}

// adopt watches for revocation before the session becomes visible, so a
// sign-out elsewhere cannot slip between the two.
// It returns the token of the session it replaced.
func (c *Client) adopt(ctx context.Context, sess *domain.Session, token string) (string, error) {
	rev, err := c.svc.WatchRevocation(context.WithoutCancel(ctx), sess.ID)
	if err != nil {
		return "", err
	}
	return c.set(sess, token, rev), nil
}

// set swaps in sess and returns the previous token.
func (c *Client) set(sess *domain.Session, token string, rev *redisstore.Revocation) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if rev != nil {
			_ = rev.Close()
		}
		return ""
	}

	prev := c.token
	c.stopGuard()
	c.session = sess
	c.token = token
	if sess != nil {
		c.guard = c.startGuard(sess, rev)
	}
	c.notify(sess)
	return prev
}

// expire clears the session if g still guards it.
func (c *Client) expire(g *guard, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.guard != g || c.session == nil {
		return
	}
	c.log.Info("session ended", logger.String("reason", reason))
	c.stopGuard()
	c.session = nil
	c.token = ""
	c.notify(nil)
}

func (c *Client) notify(sess *domain.Session) {
	for _, ch := range c.watchers {
		select {
		case ch <- sess:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- sess:
		default:
		}
	}
}

type guard struct {
	rev  *redisstore.Revocation
	stop chan struct{}
}

func (c *Client) startGuard(sess *domain.Session, rev *redisstore.Revocation) *guard {
	g := &guard{rev: rev, stop: make(chan struct{})}

	var expiry <-chan time.Time
	if !sess.ExpiresAt.IsZero() {
		t := time.NewTimer(sess.ExpiresAt.Sub(c.svc.now()))
		expiry = t.C
		go func() {
			<-g.stop
			t.Stop()
		}()
	}
	var revoked <-chan struct{}
	if rev != nil {
		revoked = rev.Done()
	}

	go func() {
		select {
		case <-g.stop:
		case <-expiry:
			c.expire(g, "expired")
		case <-revoked:
			c.expire(g, "revoked")
		}
	}()
	return g
}

// stopGuard must be called with c.mu held.
func (c *Client) stopGuard() {
	if c.guard == nil {
		return
	}
	close(c.guard.stop)
	if c.guard.rev != nil {
		if err := c.guard.rev.Close(); err != nil {
			c.log.Debug("failed to close revocation watch", logger.Error(err))
		}
	}
	c.guard = nil
}

type watch struct {
	client *Client
	id     uint64
	ch     chan *domain.Session
}

func (w *watch) Changes() <-chan *domain.Session { return w.ch }

func (w *watch) Unsubscribe() {
	c := w.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.watchers[w.id]; ok {
		delete(c.watchers, w.id)
		close(ch)
	}
}
