package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// ErrStopped is returned by operations issued after Run has returned.
var ErrStopped = errors.New("reconciler stopped")

// Reconciler keeps one user's bookmark list in sync with the store.
//
// All state lives on the goroutine running Run. Store calls happen on
// the caller's goroutine (or a loader goroutine) and their completion is
// posted back to the loop. Each (re)initialization bumps a generation;
// completions captured under an older generation are dropped.
type Reconciler struct {
	store    BookmarkStore
	sessions SessionSource
	log      logger.Logger

	tasks chan func()
	done  chan struct{}

	watchMu   sync.Mutex
	watchers  map[uint64]chan View
	nextWatch uint64
	last      View
	closed    bool

	// loop-owned
	session   *domain.Session
	gen       uint64
	cancelGen context.CancelFunc
	list      List
	loading   bool
	pending   []domain.Event
	feed      domain.ChangeFeed
	errMsg    string
	editing   *Draft
}

// New wires a reconciler. Call Run to start it.
func New(store BookmarkStore, sessions SessionSource, log logger.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		sessions: sessions,
		log:      log,
		tasks:    make(chan func()),
		done:     make(chan struct{}),
		watchers: make(map[uint64]chan View),
	}
}

// Run processes session changes, change-feed events and operations
// until ctx is cancelled. It tears everything down before returning.
func (r *Reconciler) Run(ctx context.Context) error {
	defer close(r.done)

	watch := r.sessions.Watch()
	defer watch.Unsubscribe()
	defer r.shutdown()

	start := r.gen
	go func() {
		s, err := r.sessions.Current(ctx)
		r.post(func() {
			if r.gen != start {
				r.log.Debug("session changed before initial lookup returned")
				return
			}
			if err != nil {
				r.log.Warn("failed to read current session", logger.Error(err))
				r.errMsg = err.Error()
				r.publish()
				return
			}
			r.initialize(ctx, s)
		})
	}()

	changes := watch.Changes()
	for {
		var events <-chan domain.Event
		if r.feed != nil {
			events = r.feed.Events()
		}

		select {
		case <-ctx.Done():
			return nil
		case fn := <-r.tasks:
			fn()
		case s, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			r.initialize(ctx, s)
		case ev, ok := <-events:
			if !ok {
				r.log.Warn("change feed closed")
				r.feed = nil
				continue
			}
			r.receive(ev)
		}
	}
}

// Apply merges a change-feed event as if it came from the subscription.
func (r *Reconciler) Apply(ctx context.Context, ev domain.Event) error {
	return r.do(ctx, func() { r.receive(ev) })
}

// Snapshot returns the current view.
func (r *Reconciler) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := r.do(ctx, func() { v = r.view() })
	return v, err
}

// Watch returns a channel carrying the latest view (older unread views
// are replaced) and a release func. The channel is closed on release
// or when Run returns.
func (r *Reconciler) Watch() (<-chan View, func()) {
	ch := make(chan View, 1)

	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextWatch
	r.nextWatch++
	r.watchers[id] = ch
	ch <- r.last

	return ch, func() {
		r.watchMu.Lock()
		defer r.watchMu.Unlock()
		if c, ok := r.watchers[id]; ok {
			delete(r.watchers, id)
			close(c)
		}
	}
}

// AddBookmark inserts a bookmark for the signed-in user and prepends the
// stored record on success.
func (r *Reconciler) AddBookmark(ctx context.Context, title, url string) (domain.Bookmark, error) {
	if err := domain.Validate(title, url); err != nil {
		return domain.Bookmark{}, r.report(ctx, err, nil)
	}
	t, err := r.begin(ctx)
	if err != nil {
		return domain.Bookmark{}, err
	}

	b, err := r.store.Insert(ctx, domain.NewBookmark{
		Fields:  domain.Fields{Title: strings.TrimSpace(title), URL: strings.TrimSpace(url)},
		OwnerID: t.ownerID,
	})
	if err != nil {
		serr := &domain.StoreError{Op: "insert", Err: err}
		r.log.Warn("insert failed", logger.Error(err))
		r.finish(ctx, t, func() { r.errMsg = serr.Error() })
		return domain.Bookmark{}, serr
	}

	r.finish(ctx, t, func() {
		if !r.list.Prepend(b) {
			r.log.Debug("insert already applied from change feed", logger.String("id", b.ID))
		}
	})
	return b, nil
}

// EditBookmark updates title and url of id. On failure the draft is kept
// in the view so the edit form stays open.
func (r *Reconciler) EditBookmark(ctx context.Context, id, title, url string) error {
	draft := &Draft{ID: id, Title: title, URL: url}
	if err := domain.Validate(title, url); err != nil {
		return r.report(ctx, err, draft)
	}
	t, err := r.begin(ctx)
	if err != nil {
		return err
	}

	f := domain.Fields{Title: strings.TrimSpace(title), URL: strings.TrimSpace(url)}
	if err := r.store.Update(ctx, t.ownerID, id, f); err != nil {
		serr := &domain.StoreError{Op: "update", Err: err}
		r.log.Warn("update failed", logger.String("id", id), logger.Error(err))
		r.finish(ctx, t, func() {
			r.errMsg = serr.Error()
			r.editing = draft
		})
		return serr
	}

	r.finish(ctx, t, func() {
		r.list.Patch(id, f)
		if r.editing != nil && r.editing.ID == id {
			r.editing = nil
		}
	})
	return nil
}

// DeleteBookmark removes id from the store, then from the list.
func (r *Reconciler) DeleteBookmark(ctx context.Context, id string) error {
	t, err := r.begin(ctx)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, t.ownerID, id); err != nil {
		serr := &domain.StoreError{Op: "delete", Err: err}
		r.log.Warn("delete failed", logger.String("id", id), logger.Error(err))
		r.finish(ctx, t, func() { r.errMsg = serr.Error() })
		return serr
	}

	r.finish(ctx, t, func() { r.list.Remove(id) })
	return nil
}

// BeginEdit opens the edit form for id with its current values.
func (r *Reconciler) BeginEdit(ctx context.Context, id string) error {
	var found bool
	err := r.do(ctx, func() {
		b, ok := r.list.Get(id)
		if !ok {
			return
		}
		found = true
		r.editing = &Draft{ID: b.ID, Title: b.Title, URL: b.URL}
		r.publish()
	})
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

// CancelEdit closes the edit form.
func (r *Reconciler) CancelEdit(ctx context.Context) error {
	return r.do(ctx, func() {
		if r.editing != nil {
			r.editing = nil
			r.publish()
		}
	})
}

// Dismiss clears the displayed error message.
func (r *Reconciler) Dismiss(ctx context.Context) error {
	return r.do(ctx, func() {
		if r.errMsg != "" {
			r.errMsg = ""
			r.publish()
		}
	})
}

// ticket pins a mutation to the session generation it started under.
type ticket struct {
	gen     uint64
	ownerID string
}

func (r *Reconciler) begin(ctx context.Context) (ticket, error) {
	var t ticket
	err := r.do(ctx, func() {
		if r.errMsg != "" {
			r.errMsg = ""
			r.publish()
		}
		t.gen = r.gen
		if r.session != nil {
			t.ownerID = r.session.UserID
		}
	})
	if err != nil {
		return t, err
	}
	if t.ownerID == "" {
		return t, r.report(ctx, domain.ErrNoSession, nil)
	}
	return t, nil
}

// finish applies fn unless the session changed since t was issued.
// It runs even when ctx is cancelled so a confirmed write is not lost.
func (r *Reconciler) finish(ctx context.Context, t ticket, fn func()) {
	_ = r.do(context.WithoutCancel(ctx), func() {
		if r.gen != t.gen {
			r.log.Debug("dropping completion from previous session",
				logger.Uint64("gen", t.gen), logger.Uint64("current", r.gen))
			return
		}
		fn()
		r.publish()
	})
}

func (r *Reconciler) report(ctx context.Context, err error, draft *Draft) error {
	_ = r.do(ctx, func() {
		r.errMsg = err.Error()
		if draft != nil {
			r.editing = draft
		}
		r.publish()
	})
	return err
}

func (r *Reconciler) initialize(ctx context.Context, s *domain.Session) {
	if s != nil && r.session != nil && s.ID == r.session.ID {
		r.session = s
		r.publish()
		return
	}

	r.teardown()
	if s == nil {
		r.log.Info("signed out, bookmark list cleared")
		r.publish()
		return
	}

	r.session = s
	r.loading = true
	genCtx, cancel := context.WithCancel(ctx)
	r.cancelGen = cancel
	r.log.Info("session started, loading bookmarks",
		logger.String("user_id", s.UserID), logger.Uint64("gen", r.gen))
	r.publish()

	go r.load(genCtx, r.gen, s.UserID)
}

// load opens the change-feed first, then fetches, so nothing published
// between the two is missed. Events arriving before the fetch lands are
// buffered in pending and replayed on top of it.
func (r *Reconciler) load(ctx context.Context, gen uint64, ownerID string) {
	feed, err := r.store.Subscribe(ctx, ownerID)
	if err != nil {
		r.log.Warn("change feed unavailable, live updates disabled", logger.Error(err))
	} else if !r.post(func() {
		if r.gen != gen {
			r.release(feed)
			return
		}
		r.feed = feed
	}) {
		r.release(feed)
	}

	list, err := r.store.Query(ctx, ownerID)
	r.post(func() {
		if r.gen != gen {
			r.log.Debug("dropping fetch from previous session", logger.Uint64("gen", gen))
			return
		}
		r.loading = false
		if err != nil {
			r.log.Warn("fetch bookmarks failed", logger.Error(err))
			r.errMsg = (&domain.StoreError{Op: "query", Err: err}).Error()
		} else {
			r.list.Reset(list)
		}
		pending := r.pending
		r.pending = nil
		for _, ev := range pending {
			r.list.Apply(ev)
		}
		r.log.Debug("bookmarks loaded",
			logger.Int("count", r.list.Len()), logger.Int("replayed", len(pending)))
		r.publish()
	})
}

func (r *Reconciler) receive(ev domain.Event) {
	if r.session == nil {
		return
	}
	if r.loading {
		r.pending = append(r.pending, ev)
		return
	}
	if r.list.Apply(ev) {
		r.publish()
	}
}

// teardown releases the feed and clears all state. Safe without a feed.
func (r *Reconciler) teardown() {
	r.gen++
	if r.cancelGen != nil {
		r.cancelGen()
		r.cancelGen = nil
	}
	if r.feed != nil {
		r.release(r.feed)
		r.feed = nil
	}
	r.session = nil
	r.list.Clear()
	r.pending = nil
	r.loading = false
	r.errMsg = ""
	r.editing = nil
}

func (r *Reconciler) shutdown() {
	r.teardown()
	r.publish()

	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	r.closed = true
	for id, ch := range r.watchers {
		delete(r.watchers, id)
		close(ch)
	}
}

func (r *Reconciler) release(feed domain.ChangeFeed) {
	if err := feed.Unsubscribe(); err != nil {
		r.log.Warn("failed to close change feed", logger.Error(err))
	}
}

func (r *Reconciler) view() View {
	v := View{
		Session:   r.session,
		Bookmarks: r.list.Items(),
		Loading:   r.loading,
		Error:     r.errMsg,
	}
	if r.editing != nil {
		d := *r.editing
		v.Editing = &d
	}
	return v
}

func (r *Reconciler) publish() {
	v := r.view()
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	r.last = v
	for _, ch := range r.watchers {
		offer(ch, v)
	}
}

// do runs fn on the loop and waits for it. Must not be called from the loop.
func (r *Reconciler) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	task := func() {
		defer close(ran)
		fn()
	}
	select {
	case r.tasks <- task:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ran
	return nil
}

// post schedules fn on the loop without waiting. Reports false once Run has returned.
func (r *Reconciler) post(fn func()) bool {
	select {
	case r.tasks <- fn:
		return true
	case <-r.done:
		return false
	}
}
