package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Store maps sender identity to Session and serializes work per sender.
//
// Callers hold Lock for the whole load -> transition -> save cycle of an
// event. Handlers that write another sender's session take that sender's
// lock too; staff handlers may lock customers, never the reverse.
type Store struct {
	cache *cache.Cache

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewStore creates a store whose entries expire after idleTTL without writes.
func NewStore(idleTTL time.Duration) *Store {
	return &Store{
		cache: cache.New(idleTTL, idleTTL/2+time.Minute),
		locks: make(map[string]*keyLock),
	}
}

// Lock blocks until the sender's lock is held or ctx is done.
func (s *Store) Lock(ctx context.Context, sender string) (func(), error) {
	s.mu.Lock()
	kl, ok := s.locks[sender]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[sender] = kl
	}
	kl.refs++
	s.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		s.release(sender, kl)
		return nil, fmt.Errorf("lock session %s: %w", sender, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			s.release(sender, kl)
		})
	}, nil
}

func (s *Store) release(sender string, kl *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(s.locks, sender)
	}
}

// Get returns the sender's session, if any.
func (s *Store) Get(sender string) (Session, bool) {
	v, ok := s.cache.Get(sender)
	if !ok {
		return Session{}, false
	}
	return v.(Session), true
}

// Put overwrites the sender's session.
func (s *Store) Put(sender string, sess Session) {
	sess.UpdatedAt = time.Now()
	s.cache.Set(sender, sess, cache.DefaultExpiration)
}

// Delete ends the sender's flow.
func (s *Store) Delete(sender string) {
	s.cache.Delete(sender)
}

// Seed writes another sender's session under that sender's lock.
func (s *Store) Seed(ctx context.Context, sender string, sess Session) error {
	unlock, err := s.Lock(ctx, sender)
	if err != nil {
		return err
	}
	defer unlock()
	s.Put(sender, sess)
	return nil
}

// Reset deletes a session under its lock. Used by the admin API.
func (s *Store) Reset(ctx context.Context, sender string) error {
	unlock, err := s.Lock(ctx, sender)
	if err != nil {
		return err
	}
	defer unlock()
	s.Delete(sender)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
