package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxnav/voxnav/pkg/dialog"
)

// Snapshotter optionally persists committed sessions across restarts.
// Failures are reported but never fail a turn.
type Snapshotter interface {
	Save(ctx context.Context, sess *dialog.Session, ttl time.Duration) error
	Load(ctx context.Context, userID string) (*dialog.Session, error)
	Delete(ctx context.Context, userID string) error
}

type entry struct {
	mu   sync.Mutex
	sess *dialog.Session
	// gone marks an entry removed by expiry while a waiter was queued on mu;
	// the waiter re-resolves the entry instead of committing into an orphan.
	gone bool
}

// Store holds one live Session per user id. Access is exclusive per user and
// fully parallel across users; there is no global lock on the turn path.
type Store struct {
	entries sync.Map // user id -> *entry
	count   atomic.Int64

	snap    Snapshotter
	snapTTL time.Duration
	logger  *slog.Logger
}

func NewStore() *Store {
	return &Store{logger: slog.Default()}
}

// SetSnapshotter enables snapshot persistence for committed sessions.
func (s *Store) SetSnapshotter(snap Snapshotter, ttl time.Duration) {
	s.snap = snap
	s.snapTTL = ttl
}

func (s *Store) entryFor(userID string) *entry {
	for {
		v, _ := s.entries.LoadOrStore(userID, &entry{})
		e := v.(*entry)
		e.mu.Lock()
		if !e.gone {
			return e // returned locked
		}
		e.mu.Unlock()
	}
}

// Update runs fn against the user's session under that user's lock. fn
// receives a deep copy; the copy is committed only when fn returns nil and
// ctx is still live, so a failed or abandoned turn never leaves the session
// half-updated. A missing or expired session is recreated idle.
func (s *Store) Update(ctx context.Context, userID string, fn func(*dialog.Session) error) (*dialog.Session, error) {
	e := s.entryFor(userID)
	defer e.mu.Unlock()

	if e.sess == nil {
		if restored := s.restore(ctx, userID); restored != nil {
			e.sess = restored
		} else {
			e.sess = dialog.NewSession(userID)
		}
		s.count.Add(1)
	}

	cp := e.sess.Clone()
	if err := fn(cp); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.sess = cp

	if s.snap != nil {
		if err := s.snap.Save(ctx, cp, s.snapTTL); err != nil {
			s.logger.Warn("session_snapshot_failed", "user_id", userID, "error", err)
		}
	}
	return cp.Clone(), nil
}

// Peek returns a copy of the user's session without creating one.
func (s *Store) Peek(userID string) (*dialog.Session, bool) {
	v, ok := s.entries.Load(userID)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone || e.sess == nil {
		return nil, false
	}
	return e.sess.Clone(), true
}

// Reset discards the user's session and any snapshot.
func (s *Store) Reset(ctx context.Context, userID string) {
	if v, ok := s.entries.LoadAndDelete(userID); ok {
		e := v.(*entry)
		e.mu.Lock()
		if e.sess != nil {
			s.count.Add(-1)
		}
		e.sess = nil
		e.gone = true
		e.mu.Unlock()
	}
	if s.snap != nil {
		if err := s.snap.Delete(ctx, userID); err != nil {
			s.logger.Warn("session_snapshot_delete_failed", "user_id", userID, "error", err)
		}
	}
}

// ExpireIdle evicts sessions with no activity inside ttl and returns how many
// were removed. In-progress slot state is discarded with the session.
func (s *Store) ExpireIdle(now time.Time, ttl time.Duration) int {
	expired := 0
	s.entries.Range(func(key, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		idle := e.sess == nil || now.Sub(e.sess.LastUpdated) > ttl
		if idle && !e.gone {
			e.gone = true
			if e.sess != nil {
				s.count.Add(-1)
				expired++
			}
			e.sess = nil
			s.entries.Delete(key)
		}
		e.mu.Unlock()
		return true
	})
	return expired
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return int(s.count.Load())
}

// Sweep runs ExpireIdle on a timer until ctx is cancelled. Eviction precision
// is bounded by the interval, not the ttl.
func (s *Store) Sweep(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.ExpireIdle(now, ttl); n > 0 {
				s.logger.Info("sessions_expired", "count", n)
			}
		}
	}
}

func (s *Store) restore(ctx context.Context, userID string) *dialog.Session {
	if s.snap == nil {
		return nil
	}
	sess, err := s.snap.Load(ctx, userID)
	if err != nil {
		s.logger.Warn("session_snapshot_load_failed", "user_id", userID, "error", err)
		return nil
	}
	return sess
}
