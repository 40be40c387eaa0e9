package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

var (
	t1    = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	alice = &domain.Session{ID: "s-alice", UserID: "alice", Email: "alice@example.com"}
	bob   = &domain.Session{ID: "s-bob", UserID: "bob", Email: "bob@example.com"}
)

type harness struct {
	rec      *Reconciler
	store    *fakeStore
	sessions *fakeSessions
	stop     func()
}

func start(t *testing.T, store *fakeStore, sessions *fakeSessions) *harness {
	t.Helper()
	rec := New(store, sessions, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := rec.Run(ctx); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()
	h := &harness{rec: rec, store: store, sessions: sessions}
	h.stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(h.stop)
	return h
}

// waitFor polls the view until cond holds.
func (h *harness) waitFor(t *testing.T, what string, cond func(View) bool) View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var v View
	for time.Now().Before(deadline) {
		var err error
		v, err = h.rec.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
		if cond(v) {
			return v
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last view: %+v", what, v)
	return v
}

func loaded(v View) bool { return v.Session != nil && !v.Loading }

func withIDs(want ...string) func(View) bool {
	return func(v View) bool {
		if len(v.Bookmarks) != len(want) {
			return false
		}
		for i := range want {
			if v.Bookmarks[i].ID != want[i] {
				return false
			}
		}
		return true
	}
}

func signedInHarness(t *testing.T, rows ...domain.Bookmark) *harness {
	t.Helper()
	store := newFakeStore()
	store.seed("alice", rows...)
	h := start(t, store, &fakeSessions{current: alice})
	h.waitFor(t, "initial load", loaded)
	return h
}

func TestInitialFetchThenDuplicateInsertFromFeed(t *testing.T) {
	h := signedInHarness(t, domain.Bookmark{ID: "1", Title: "A", URL: "http://a", OwnerID: "alice", InsertedAt: t1})

	h.store.feed("alice").ch <- domain.Event{Kind: domain.EventInsert, Record: domain.Bookmark{ID: "1", Title: "A", URL: "http://a"}}
	// a second, distinct event proves the first one has been processed
	h.store.feed("alice").ch <- domain.Event{Kind: domain.EventDelete, Record: domain.Bookmark{ID: "nope"}}

	v := h.waitFor(t, "single record", withIDs("1"))
	if v.Bookmarks[0].Title != "A" {
		t.Errorf("title = %q, want A", v.Bookmarks[0].Title)
	}
}

func TestAddBookmarkPrependsAndSuppressesEcho(t *testing.T) {
	h := signedInHarness(t, domain.Bookmark{ID: "1", Title: "A", URL: "http://a", OwnerID: "alice", InsertedAt: t1})

	b, err := h.rec.AddBookmark(context.Background(), "Docs", "http://docs")
	if err != nil {
		t.Fatalf("AddBookmark() error = %v", err)
	}
	if b.OwnerID != "alice" {
		t.Errorf("owner = %q, want alice", b.OwnerID)
	}
	h.waitFor(t, "new record prepended", withIDs(b.ID, "1"))

	h.store.feed("alice").ch <- domain.Event{Kind: domain.EventInsert, Record: b}
	h.store.feed("alice").ch <- domain.Event{Kind: domain.EventDelete, Record: domain.Bookmark{ID: "nope"}}
	time.Sleep(20 * time.Millisecond)
	h.waitFor(t, "no duplicate after echo", withIDs(b.ID, "1"))
}

func TestEchoBeforeAckDoesNotDuplicate(t *testing.T) {
	h := signedInHarness(t)
	rec := domain.Bookmark{ID: "100", Title: "Docs", URL: "http://docs", OwnerID: "alice"}

	// The feed wins the race: the row is already there when the insert returns.
	if err := h.rec.Apply(context.Background(), domain.Event{Kind: domain.EventInsert, Record: rec}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	b, err := h.rec.AddBookmark(context.Background(), "Docs", "http://docs")
	if err != nil {
		t.Fatalf("AddBookmark() error = %v", err)
	}
	if b.ID != "100" {
		t.Fatalf("fake store assigned %s, want 100", b.ID)
	}
	h.waitFor(t, "single copy", withIDs("100"))
}

func TestFeedDeleteRemovesRecord(t *testing.T) {
	h := signedInHarness(t,
		domain.Bookmark{ID: "1", OwnerID: "alice"},
		domain.Bookmark{ID: "2", OwnerID: "alice"},
	)

	h.store.feed("alice").ch <- domain.Event{Kind: domain.EventDelete, Record: domain.Bookmark{ID: "1"}}

	h.waitFor(t, "record 1 removed", withIDs("2"))
}

func TestEditBookmarkInPlace(t *testing.T) {
	h := signedInHarness(t,
		domain.Bookmark{ID: "2", Title: "Old", URL: "http://old", OwnerID: "alice", InsertedAt: t1},
		domain.Bookmark{ID: "1", Title: "A", URL: "http://a", OwnerID: "alice", InsertedAt: t1.Add(-time.Hour)},
	)

	if err := h.rec.EditBookmark(context.Background(), "2", "New", "http://new"); err != nil {
		t.Fatalf("EditBookmark() error = %v", err)
	}

	v := h.waitFor(t, "edited", func(v View) bool { return len(v.Bookmarks) == 2 && v.Bookmarks[0].Title == "New" })
	got := v.Bookmarks[0]
	if got.ID != "2" || got.URL != "http://new" {
		t.Errorf("record = %+v, want id 2 at position 0 with new url", got)
	}
	if !got.InsertedAt.Equal(t1) {
		t.Errorf("inserted_at = %v, want %v", got.InsertedAt, t1)
	}
	if v.Editing != nil {
		t.Errorf("editing = %+v, want closed after success", v.Editing)
	}
}

func TestValidationNeverCallsStore(t *testing.T) {
	h := signedInHarness(t)

	tests := []struct {
		name  string
		title string
		url   string
	}{
		{name: "empty title", title: "", url: "http://a"},
		{name: "empty url", title: "A", url: ""},
		{name: "both empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.rec.AddBookmark(context.Background(), tt.title, tt.url)
			if !domain.IsValidation(err) {
				t.Fatalf("AddBookmark() error = %v, want ValidationError", err)
			}
			err = h.rec.EditBookmark(context.Background(), "1", tt.title, tt.url)
			if !domain.IsValidation(err) {
				t.Fatalf("EditBookmark() error = %v, want ValidationError", err)
			}
		})
	}

	if n := h.store.callCount(); n != 0 {
		t.Errorf("store mutation calls = %d, want 0", n)
	}
	v := h.waitFor(t, "error shown", func(v View) bool { return v.Error != "" })
	if v.Error != "Title and URL are required" {
		t.Errorf("error = %q", v.Error)
	}
}

func TestStoreFailuresLeaveStateUnchanged(t *testing.T) {
	h := signedInHarness(t,
		domain.Bookmark{ID: "1", Title: "A", URL: "http://a", OwnerID: "alice"},
	)
	for _, op := range []string{"insert", "update", "delete"} {
		h.store.fail(op, errBoom)
	}

	_, err := h.rec.AddBookmark(context.Background(), "Docs", "http://docs")
	var serr *domain.StoreError
	if !errors.As(err, &serr) || serr.Op != "insert" {
		t.Fatalf("AddBookmark() error = %v, want StoreError(insert)", err)
	}
	if err.Error() != errBoom.Error() {
		t.Errorf("message = %q, want store message verbatim", err.Error())
	}

	if err := h.rec.DeleteBookmark(context.Background(), "1"); !errors.As(err, &serr) {
		t.Fatalf("DeleteBookmark() error = %v, want StoreError", err)
	}

	if err := h.rec.EditBookmark(context.Background(), "1", "B", "http://b"); !errors.As(err, &serr) {
		t.Fatalf("EditBookmark() error = %v, want StoreError", err)
	}

	v := h.waitFor(t, "error displayed", func(v View) bool { return v.Error == errBoom.Error() })
	if len(v.Bookmarks) != 1 || v.Bookmarks[0].Title != "A" {
		t.Errorf("bookmarks = %+v, want unchanged", v.Bookmarks)
	}
	if v.Editing == nil || v.Editing.Title != "B" || v.Editing.URL != "http://b" {
		t.Errorf("editing = %+v, want the draft kept after a failed edit", v.Editing)
	}

	if err := h.rec.Dismiss(context.Background()); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	h.waitFor(t, "error dismissed", func(v View) bool { return v.Error == "" })
}

func TestSignOutClearsStateAndClosesFeed(t *testing.T) {
	h := signedInHarness(t, domain.Bookmark{ID: "1", OwnerID: "alice"})
	h.waitFor(t, "loaded", withIDs("1"))
	feed := h.store.feed("alice")

	h.sessions.set(nil)

	v := h.waitFor(t, "signed out", func(v View) bool { return v.Session == nil })
	if len(v.Bookmarks) != 0 {
		t.Errorf("bookmarks = %v, want empty", ids(v.Bookmarks))
	}
	if !feed.isClosed() {
		t.Error("change feed was not unsubscribed")
	}

	if _, err := h.rec.AddBookmark(context.Background(), "Docs", "http://docs"); !errors.Is(err, domain.ErrNoSession) {
		t.Errorf("AddBookmark() signed out error = %v, want ErrNoSession", err)
	}
}

func TestStaleFetchFromPreviousSessionIsDropped(t *testing.T) {
	store := newFakeStore()
	store.seed("alice", domain.Bookmark{ID: "a1", OwnerID: "alice"})
	store.seed("bob", domain.Bookmark{ID: "b1", OwnerID: "bob"})
	gate := store.gate("alice")

	sessions := &fakeSessions{current: alice}
	h := start(t, store, sessions)
	h.waitFor(t, "alice loading", func(v View) bool { return v.Session != nil && v.Session.UserID == "alice" && v.Loading })

	sessions.set(bob)
	h.waitFor(t, "bob loaded", func(v View) bool {
		return v.Session != nil && v.Session.UserID == "bob" && withIDs("b1")(v)
	})

	close(gate)
	time.Sleep(30 * time.Millisecond)
	v := h.waitFor(t, "still bob", withIDs("b1"))
	if v.Session.UserID != "bob" {
		t.Errorf("session = %s, want bob", v.Session.UserID)
	}
	if !store.feed("alice").isClosed() {
		t.Error("alice's feed should be closed after switching user")
	}
}

func TestInsertCompletingAfterSessionSwitchIsDropped(t *testing.T) {
	store := newFakeStore()
	store.seed("alice", domain.Bookmark{ID: "a1", OwnerID: "alice"})
	store.seed("bob", domain.Bookmark{ID: "b1", OwnerID: "bob"})
	sessions := &fakeSessions{current: alice}
	h := start(t, store, sessions)
	h.waitFor(t, "alice loaded", withIDs("a1"))

	hold := store.holdInserts()
	done := make(chan error, 1)
	go func() {
		_, err := h.rec.AddBookmark(context.Background(), "Late", "https://late.example")
		done <- err
	}()
	select {
	case <-hold.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("insert never reached the store")
	}

	sessions.set(bob)
	h.waitFor(t, "bob loaded", func(v View) bool {
		return v.Session != nil && v.Session.UserID == "bob" && withIDs("b1")(v)
	})

	close(hold.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("AddBookmark() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AddBookmark() did not return")
	}

	v := h.waitFor(t, "still bob", withIDs("b1"))
	if v.Session.UserID != "bob" {
		t.Errorf("session = %s, want bob", v.Session.UserID)
	}
	rows, _ := store.Query(context.Background(), "alice")
	if len(rows) != 2 || rows[0].Title != "Late" {
		t.Errorf("alice rows = %+v, want the late insert stored", rows)
	}
}

func TestEventsDuringFetchAreReplayed(t *testing.T) {
	store := newFakeStore()
	store.seed("alice", domain.Bookmark{ID: "1", OwnerID: "alice"}, domain.Bookmark{ID: "2", OwnerID: "alice"})
	gate := store.gate("alice")
	h := start(t, store, &fakeSessions{current: alice})

	feed := store.feed("alice")
	feed.ch <- domain.Event{Kind: domain.EventInsert, Record: domain.Bookmark{ID: "9", OwnerID: "alice"}}
	feed.ch <- domain.Event{Kind: domain.EventInsert, Record: domain.Bookmark{ID: "1", OwnerID: "alice"}}
	feed.ch <- domain.Event{Kind: domain.EventDelete, Record: domain.Bookmark{ID: "2"}}
	time.Sleep(20 * time.Millisecond)

	close(gate)
	h.waitFor(t, "fetch merged with buffered events", withIDs("9", "1"))
}

func TestSubscriptionFailureStillLoads(t *testing.T) {
	store := newFakeStore()
	store.subFail = errors.New("realtime unavailable")
	store.seed("alice", domain.Bookmark{ID: "1", OwnerID: "alice"})
	sessions := &fakeSessions{current: alice}
	h := start(t, store, sessions)

	h.waitFor(t, "loaded without feed", withIDs("1"))

	sessions.set(nil)
	h.waitFor(t, "teardown without feed", func(v View) bool { return v.Session == nil && len(v.Bookmarks) == 0 })
}

func TestSignedOutStartDoesNotSubscribe(t *testing.T) {
	store := newFakeStore()
	h := start(t, store, &fakeSessions{})

	v := h.waitFor(t, "idle", func(v View) bool { return v.Session == nil && !v.Loading })
	if len(v.Bookmarks) != 0 {
		t.Errorf("bookmarks = %v, want none", ids(v.Bookmarks))
	}
	store.mu.Lock()
	n := len(store.feeds)
	store.mu.Unlock()
	if n != 0 {
		t.Errorf("subscriptions = %d, want 0", n)
	}
}

func TestWatchReceivesLatestAndClosesOnStop(t *testing.T) {
	h := signedInHarness(t, domain.Bookmark{ID: "1", OwnerID: "alice"})
	views, release := h.rec.Watch()
	defer release()

	if _, err := h.rec.AddBookmark(context.Background(), "Docs", "http://docs"); err != nil {
		t.Fatalf("AddBookmark() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-views:
			if len(v.Bookmarks) == 2 {
				h.stop()
				for range views {
				}
				if _, err := h.rec.Snapshot(context.Background()); !errors.Is(err, ErrStopped) {
					t.Errorf("Snapshot() after stop error = %v, want ErrStopped", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("never saw the added bookmark on the watch channel")
		}
	}
}

func TestBeginAndCancelEdit(t *testing.T) {
	h := signedInHarness(t, domain.Bookmark{ID: "1", Title: "A", URL: "http://a", OwnerID: "alice"})

	if err := h.rec.BeginEdit(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("BeginEdit(missing) error = %v, want ErrNotFound", err)
	}
	if err := h.rec.BeginEdit(context.Background(), "1"); err != nil {
		t.Fatalf("BeginEdit() error = %v", err)
	}
	v := h.waitFor(t, "editing", func(v View) bool { return v.Editing != nil })
	if v.Editing.Title != "A" {
		t.Errorf("draft title = %q, want A", v.Editing.Title)
	}
	if err := h.rec.CancelEdit(context.Background()); err != nil {
		t.Fatalf("CancelEdit() error = %v", err)
	}
	h.waitFor(t, "edit closed", func(v View) bool { return v.Editing == nil })
}
