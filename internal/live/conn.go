package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/reconcile"
)

type conn struct {
	ws  *websocket.Conn
	hub *Hub
	log logger.Logger

	client *auth.Client
	rec    *reconcile.Reconciler

	mu      sync.Mutex
	query   string
	refresh chan struct{}
}

func newConn(ws *websocket.Conn, hub *Hub, log logger.Logger) *conn {
	return &conn{
		ws:      ws,
		hub:     hub,
		log:     log,
		refresh: make(chan struct{}, 1),
	}
}

func (c *conn) run(ctx context.Context, token string) error {
	c.client = auth.NewClient(c.hub.auth, c.log)
	defer c.client.Close()

	if token != "" {
		if err := c.client.Resume(ctx, token); err != nil {
			c.log.Debug("could not resume session", logger.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	c.rec = reconcile.New(c.hub.store, c.client, c.log)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = c.rec.Run(ctx)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	views, release := c.rec.Watch()
	defer release()

	pushed := make(chan error, 1)
	go func() {
		err := c.push(ctx, views)
		cancel()
		pushed <- err
	}()

	readErr := c.read(ctx)
	cancel()
	if err := <-pushed; err != nil {
		return err
	}
	return readErr
}

// push sends a state message for every new view and every query change.
func (c *conn) push(ctx context.Context, views <-chan reconcile.View) error {
	var last reconcile.View
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-views:
			if !ok {
				return nil
			}
			last = v
		case <-c.refresh:
		}
		if err := c.write(ctx, stateMessage(last, c.currentQuery())); err != nil {
			return err
		}
	}
}

func (c *conn) read(ctx context.Context) error {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.log.Debug("invalid live message", logger.Error(err))
			if err := c.write(ctx, ResultMessage{Type: "result", Error: "Invalid message format"}); err != nil {
				return err
			}
			continue
		}

		if err := c.write(ctx, c.handle(ctx, cmd)); err != nil {
			return err
		}
	}
}

func (c *conn) handle(ctx context.Context, cmd Command) ResultMessage {
	res := ResultMessage{Type: "result", ID: cmd.ID}

	var err error
	switch cmd.Type {
	case CmdAdd:
		var b domain.Bookmark
		if b, err = c.rec.AddBookmark(ctx, cmd.Title, cmd.URL); err == nil {
			res.Bookmark = &b
		}
	case CmdEdit:
		err = c.rec.EditBookmark(ctx, cmd.BookmarkID, cmd.Title, cmd.URL)
	case CmdBeginEdit:
		err = c.rec.BeginEdit(ctx, cmd.BookmarkID)
	case CmdCancel:
		err = c.rec.CancelEdit(ctx)
	case CmdDelete:
		err = c.rec.DeleteBookmark(ctx, cmd.BookmarkID)
	case CmdDismiss:
		err = c.rec.Dismiss(ctx)
	case CmdSearch:
		c.setQuery(cmd.Query)
	case CmdSignIn:
		provider := cmd.Provider
		if provider == "" {
			provider = auth.ProviderPassword
		}
		res.Token, err = c.client.SignIn(ctx, provider, auth.Credentials{
			Email:    cmd.Email,
			Password: cmd.Password,
		})
	case CmdSignOut:
		err = c.client.SignOut(ctx)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}

	if err != nil {
		c.log.Debug("live command failed",
			logger.String("type", cmd.Type), logger.Error(err))
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}

func (c *conn) setQuery(q string) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

func (c *conn) currentQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *conn) write(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.hub.opts.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, v)
}
