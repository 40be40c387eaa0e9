package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// fakeFeed is a change-feed the test pushes events into.
type fakeFeed struct {
	ch     chan domain.Event
	once   sync.Once
	closed chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{ch: make(chan domain.Event, 16), closed: make(chan struct{})}
}

func (f *fakeFeed) Events() <-chan domain.Event { return f.ch }

func (f *fakeFeed) Unsubscribe() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeFeed) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeStore is an in-memory BookmarkStore.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string][]domain.Bookmark // owner -> newest first
	feeds   map[string][]*fakeFeed
	gates   map[string]chan struct{} // owner -> blocks Query until closed
	hold    *insertHold
	nextID  int
	calls   int
	failOn  map[string]error // op -> error
	subFail error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:   make(map[string][]domain.Bookmark),
		feeds:  make(map[string][]*fakeFeed),
		gates:  make(map[string]chan struct{}),
		failOn: make(map[string]error),
		nextID: 100,
	}
}

func (s *fakeStore) seed(owner string, rows ...domain.Bookmark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[owner] = append(s.rows[owner], rows...)
}

func (s *fakeStore) gate(owner string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := make(chan struct{})
	s.gates[owner] = g
	return g
}

// insertHold parks Insert calls until release is closed.
type insertHold struct {
	entered chan struct{}
	release chan struct{}
}

func (s *fakeStore) holdInserts() *insertHold {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = &insertHold{entered: make(chan struct{}, 1), release: make(chan struct{})}
	return s.hold
}

func (s *fakeStore) fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// feed waits for the latest subscription of owner.
func (s *fakeStore) feed(owner string) *fakeFeed {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		fs := s.feeds[owner]
		s.mu.Unlock()
		if len(fs) > 0 {
			return fs[len(fs)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	panic(fmt.Sprintf("no subscription for %s", owner))
}

func (s *fakeStore) Query(ctx context.Context, owner string) ([]domain.Bookmark, error) {
	s.mu.Lock()
	g := s.gates[owner]
	s.mu.Unlock()
	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			// a cancelled generation still reports, the reconciler must drop it
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["query"]; err != nil {
		return nil, err
	}
	out := make([]domain.Bookmark, len(s.rows[owner]))
	copy(out, s.rows[owner])
	return out, nil
}

func (s *fakeStore) Insert(_ context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	s.mu.Lock()
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		hold.entered <- struct{}{}
		<-hold.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.failOn["insert"]; err != nil {
		return domain.Bookmark{}, err
	}
	b := domain.Bookmark{
		ID:         fmt.Sprint(s.nextID),
		OwnerID:    nb.OwnerID,
		Title:      nb.Title,
		URL:        nb.URL,
		InsertedAt: time.Now(),
	}
	s.nextID++
	s.rows[nb.OwnerID] = append([]domain.Bookmark{b}, s.rows[nb.OwnerID]...)
	return b, nil
}

func (s *fakeStore) Update(_ context.Context, owner, id string, f domain.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.failOn["update"]; err != nil {
		return err
	}
	for i, b := range s.rows[owner] {
		if b.ID == id {
			s.rows[owner][i].Title = f.Title
			s.rows[owner][i].URL = f.URL
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStore) Delete(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.failOn["delete"]; err != nil {
		return err
	}
	rows := s.rows[owner]
	for i, b := range rows {
		if b.ID == id {
			s.rows[owner] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStore) Subscribe(_ context.Context, owner string) (domain.ChangeFeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subFail != nil {
		return nil, s.subFail
	}
	f := newFakeFeed()
	s.feeds[owner] = append(s.feeds[owner], f)
	return f, nil
}

// fakeSessions is a SessionSource the test drives by hand.
type fakeSessions struct {
	mu      sync.Mutex
	current *domain.Session
	watches []*fakeWatch
}

type fakeWatch struct {
	ch   chan *domain.Session
	once sync.Once
}

func (w *fakeWatch) Changes() <-chan *domain.Session { return w.ch }
func (w *fakeWatch) Unsubscribe()                    { w.once.Do(func() {}) }

func (f *fakeSessions) Current(context.Context) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeSessions) Watch() domain.SessionWatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWatch{ch: make(chan *domain.Session, 4)}
	f.watches = append(f.watches, w)
	return w
}

func (f *fakeSessions) set(s *domain.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s
	for _, w := range f.watches {
		w.ch <- s
	}
}

var errBoom = errors.New("new row violates row-level security policy")
