package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxnav/voxnav/pkg/dialog"
)

func TestUpdateCommitsOnSuccess(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	got, err := s.Update(ctx, "u1", func(sess *dialog.Session) error {
		sess.ActiveIntent = "BOOKING"
		sess.TurnCount = 1
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ActiveIntent != "BOOKING" {
		t.Fatalf("returned session missing commit: %+v", got)
	}

	peeked, ok := s.Peek("u1")
	if !ok || peeked.TurnCount != 1 {
		t.Fatalf("commit not visible: %+v ok=%v", peeked, ok)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, _ = s.Update(ctx, "u1", func(sess *dialog.Session) error {
		sess.TurnCount = 1
		return nil
	})
	_, err := s.Update(ctx, "u1", func(sess *dialog.Session) error {
		sess.TurnCount = 99
		return errors.New("turn failed")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	peeked, _ := s.Peek("u1")
	if peeked.TurnCount != 1 {
		t.Fatalf("failed turn was committed: %d", peeked.TurnCount)
	}
}

func TestUpdateDiscardsOnCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.Update(ctx, "u1", func(sess *dialog.Session) error {
		sess.TurnCount = 5
		cancel() // caller disconnects mid-turn
		return nil
	})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if peeked, ok := s.Peek("u1"); ok && peeked.TurnCount == 5 {
		t.Fatalf("abandoned turn was committed")
	}
}

func TestExpireIdle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	_, _ = s.Update(ctx, "old", func(sess *dialog.Session) error {
		sess.LastUpdated = now.Add(-time.Hour)
		return nil
	})
	_, _ = s.Update(ctx, "fresh", func(sess *dialog.Session) error {
		sess.LastUpdated = now
		return nil
	})

	expired := s.ExpireIdle(now, 30*time.Minute)
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	if _, ok := s.Peek("old"); ok {
		t.Fatalf("idle session survived expiry")
	}
	if _, ok := s.Peek("fresh"); !ok {
		t.Fatalf("fresh session evicted")
	}

	// Expired sessions are silently recreated idle on next access.
	got, err := s.Update(ctx, "old", func(sess *dialog.Session) error { return nil })
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if got.TurnCount != 0 || got.State() != dialog.StateIdle {
		t.Fatalf("recreated session not idle: %+v", got)
	}
}

func TestConcurrentUsersDoNotInterleave(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, "a", func(sess *dialog.Session) error {
				sess.TurnCount++
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, "b", func(sess *dialog.Session) error {
				sess.TurnCount++
				return nil
			})
		}()
	}
	wg.Wait()

	a, _ := s.Peek("a")
	b, _ := s.Peek("b")
	if a.TurnCount != 50 || b.TurnCount != 50 {
		t.Fatalf("lost updates: a=%d b=%d", a.TurnCount, b.TurnCount)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d", s.Len())
	}
}

type fakeSnapshotter struct {
	mu    sync.Mutex
	saved map[string]*dialog.Session
}

func newFakeSnapshotter() *fakeSnapshotter {
	return &fakeSnapshotter{saved: make(map[string]*dialog.Session)}
}

func (f *fakeSnapshotter) Save(ctx context.Context, sess *dialog.Session, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[sess.UserID] = sess.Clone()
	return nil
}

func (f *fakeSnapshotter) Load(ctx context.Context, userID string) (*dialog.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.saved[userID]; ok {
		return sess.Clone(), nil
	}
	return nil, nil
}

func (f *fakeSnapshotter) Delete(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, userID)
	return nil
}

func TestSnapshotRestoreAfterExpiry(t *testing.T) {
	s := NewStore()
	snap := newFakeSnapshotter()
	s.SetSnapshotter(snap, time.Hour)
	ctx := context.Background()
	now := time.Now()

	_, _ = s.Update(ctx, "u1", func(sess *dialog.Session) error {
		sess.ActiveIntent = "BOOKING"
		sess.LastUpdated = now
		return nil
	})
	s.ExpireIdle(now.Add(time.Hour), 30*time.Minute)

	got, err := s.Update(ctx, "u1", func(sess *dialog.Session) error { return nil })
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got.ActiveIntent != "BOOKING" {
		t.Fatalf("snapshot not restored: %+v", got)
	}
}
