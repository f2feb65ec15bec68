package session

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/mmhmddd/omega-gateway/internal/model"
)

// Backend is the durable storage behind the store: two values, written
// and removed together.
type Backend interface {
	Load() (token string, userRaw []byte, err error)
	Save(token string, userRaw []byte) error
	Clear() error
}

// Snapshot is what subscribers observe after every mutation. User and
// Token are either both set or both empty.
type Snapshot struct {
	User  *model.User
	Token string
}

func (s Snapshot) Authenticated() bool {
	return s.User != nil && s.Token != ""
}

var ErrIncompleteSession = errors.New("session requires both a user and a token")

// Store is the single source of truth for the current session. All
// mutation goes through Set, UpdateUser and Clear; every consumer else
// only reads.
type Store struct {
	backend Backend

	mu      sync.RWMutex
	user    *model.User
	token   string
	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore loads whatever the backend holds. A corrupt or half-written
// record is treated as no session: the backend is wiped and the store
// starts empty.
func NewStore(backend Backend) (*Store, error) {
	s := &Store{
		backend: backend,
		subs:    make(map[int]chan Snapshot),
	}

	token, userRaw, err := backend.Load()
	if err != nil {
		log.Printf("session: discarding unreadable state: %v", err)
		_ = backend.Clear()
		return s, nil
	}
	if token == "" || len(userRaw) == 0 {
		if token != "" || len(userRaw) != 0 {
			_ = backend.Clear()
		}
		return s, nil
	}

	user, err := model.ParseUser(userRaw)
	if err != nil {
		log.Printf("session: discarding corrupt user record: %v", err)
		_ = backend.Clear()
		return s, nil
	}

	s.user = user
	s.token = token
	return s, nil
}

func (s *Store) Set(user *model.User, token string) error {
	if user == nil || token == "" {
		return ErrIncompleteSession
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.backend.Save(token, raw); err != nil {
		return err
	}

	s.mu.Lock()
	s.user = user.Clone()
	s.token = token
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// UpdateUser replaces the profile snapshot while keeping the current
// token, for backend-driven profile refreshes.
func (s *Store) UpdateUser(user *model.User) error {
	if user == nil {
		return ErrIncompleteSession
	}

	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return ErrIncompleteSession
	}

	return s.Set(user, token)
}

func (s *Store) Clear() error {
	if err := s.backend.Clear(); err != nil {
		return err
	}

	s.mu.Lock()
	s.user = nil
	s.token = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// Token reads the durable backend directly so a peer process writing
// the same state is observed on the next read.
func (s *Store) Token() string {
	token, userRaw, err := s.backend.Load()
	if err != nil || token == "" || len(userRaw) == 0 {
		return ""
	}
	return token
}

func (s *Store) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.token != ""
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every
// mutation, plus a cancel func the subscriber must call on teardown.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 8)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{User: s.user.Clone(), Token: s.token}
}

func (s *Store) publish(snap Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop its oldest pending snapshot so the
			// latest state always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
