package edit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrSessionNotFound = errors.New("editing session not found")
	ErrUnknownSubject  = errors.New("subject is not part of the editing session")
)

// Subject is a row of an editing screen.
type Subject struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Session is one open editing screen: a Reconciler owned by a user, over a fixed list of subjects.
type Session struct {
	*Reconciler

	ID        string
	OwnerID   string
	Subjects  []Subject
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(at time.Time) {
	s.mu.Lock()
	s.lastSeen = at
	s.mu.Unlock()
}

// HasSubject reports whether id is one of the session rows.
func (s *Session) HasSubject(id string) bool {
	for _, sub := range s.Subjects {
		if sub.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Sessions is a registry of open editing sessions. Sessions left idle longer than the idle timeout
// are dropped by Sweep, pending edits included.
type Sessions struct {
	NowFunc func() time.Time

	mu    sync.Mutex
	idle  time.Duration
	items map[string]*Session
}

func NewSessions(idle time.Duration) *Sessions {
	return &Sessions{
		NowFunc: time.Now,
		idle:    idle,
		items:   make(map[string]*Session),
	}
}

// Open registers rec under a new session id.
func (s *Sessions) Open(ownerID string, rec *Reconciler, subjects []Subject) *Session {
	now := s.NowFunc()
	sess := &Session{
		Reconciler: rec,
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Subjects:   subjects,
		CreatedAt:  now,
		lastSeen:   now,
	}

	s.mu.Lock()
	s.items[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session and marks it as active.
func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.NowFunc())
	return sess, nil
}

// Lookup returns the session of kind owned by ownerID. Sessions of other owners are reported as not found.
func (s *Sessions) Lookup(id, ownerID, kind string) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID || sess.Scope().Kind != kind {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Sessions) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep drops idle sessions and returns how many were dropped.
func (s *Sessions) Sweep() int {
	if s.idle <= 0 {
		return 0
	}
	deadline := s.NowFunc().Add(-s.idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for id, sess := range s.items {
		if sess.LastSeen().Before(deadline) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

// CellInput is a value typed into a row of an editing screen.
type CellInput struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Value     string `json:"value"`
}

// StageCells stages every cell after checking it with check; nothing is staged if one fails.
func (s *Session) StageCells(cells []CellInput, check func(CellInput) error) error {
	for _, c := range cells {
		if !s.HasSubject(c.SubjectID) {
			return errors.Wrap(ErrUnknownSubject, c.SubjectID)
		}
		if check != nil {
			if err := check(c); err != nil {
				return err
			}
		}
	}
	for _, c := range cells {
		s.Stage(c.SubjectID, s.Filter().Context, c.Value)
	}
	return nil
}
