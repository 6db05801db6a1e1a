package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"propsync/models"
)

type memStore struct {
	windows   []*models.RateLimitWindow
	nextID    int64
	lookupErr error
	createErr error
	updateErr error
}

func (s *memStore) ActiveWindow(ctx context.Context, key string, since time.Time) (*models.RateLimitWindow, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	var latest *models.RateLimitWindow
	for _, w := range s.windows {
		if w.Key != key || w.WindowStart.Before(since) {
			continue
		}
		if latest == nil || w.WindowStart.After(latest.WindowStart) {
			latest = w
		}
	}
	return latest, nil
}

func (s *memStore) CreateWindow(ctx context.Context, w *models.RateLimitWindow) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	w.ID = s.nextID
	s.windows = append(s.windows, w)
	return nil
}

func (s *memStore) SetWindowCount(ctx context.Context, id int64, count int) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, w := range s.windows {
		if w.ID == id {
			w.Count = count
			return nil
		}
	}
	return errors.New("window not found")
}

func TestCheck_CountsDownThenDenies(t *testing.T) {
	store := &memStore{}
	l := New(store)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return start }

	ctx := context.Background()
	key := "sync:user:u1"

	for i, wantRemaining := range []int{2, 1, 0} {
		res := l.Check(ctx, key, 3, time.Minute)
		if !res.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
		if res.Remaining != wantRemaining {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, wantRemaining, res.Remaining)
		}
	}

	res := l.Check(ctx, key, 3, time.Minute)
	if res.Allowed {
		t.Fatalf("expected fourth request denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("expected remaining 0 on deny, got %d", res.Remaining)
	}
	if want := start.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Fatalf("expected reset at %v, got %v", want, res.ResetAt)
	}
}

func TestCheck_NewWindowAfterReset(t *testing.T) {
	store := &memStore{}
	l := New(store)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l.now = func() time.Time { return now }

	ctx := context.Background()
	key := "sync:user:u1"

	for i := 0; i < 3; i++ {
		l.Check(ctx, key, 3, time.Minute)
	}
	if res := l.Check(ctx, key, 3, time.Minute); res.Allowed {
		t.Fatalf("expected deny inside window")
	}

	now = start.Add(61 * time.Second)
	res := l.Check(ctx, key, 3, time.Minute)
	if !res.Allowed {
		t.Fatalf("expected fresh window after reset")
	}
	if res.Remaining != 2 {
		t.Fatalf("expected remaining 2 in fresh window, got %d", res.Remaining)
	}
	if len(store.windows) != 2 {
		t.Fatalf("expected 2 windows persisted, got %d", len(store.windows))
	}
}

func TestCheck_FailsOpenOnStoreErrors(t *testing.T) {
	ctx := context.Background()

	store := &memStore{lookupErr: errors.New("connection refused")}
	res := New(store).Check(ctx, "k", 5, time.Minute)
	if !res.Allowed {
		t.Fatalf("expected allow on lookup failure")
	}
	if res.Remaining != 4 {
		t.Fatalf("expected remaining 4, got %d", res.Remaining)
	}

	store = &memStore{createErr: errors.New("connection refused")}
	if res := New(store).Check(ctx, "k", 5, time.Minute); !res.Allowed {
		t.Fatalf("expected allow on create failure")
	}

	store = &memStore{}
	l := New(store)
	l.Check(ctx, "k", 5, time.Minute)
	store.updateErr = errors.New("connection refused")
	if res := l.Check(ctx, "k", 5, time.Minute); !res.Allowed {
		t.Fatalf("expected allow on increment failure")
	}
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	store := &memStore{}
	l := New(store)
	ctx := context.Background()

	if res := l.Check(ctx, UserKey("sync", "u1"), 1, time.Minute); !res.Allowed {
		t.Fatalf("expected first u1 request allowed")
	}
	if res := l.Check(ctx, UserKey("sync", "u1"), 1, time.Minute); res.Allowed {
		t.Fatalf("expected second u1 request denied")
	}
	if res := l.Check(ctx, UserKey("sync", "u2"), 1, time.Minute); !res.Allowed {
		t.Fatalf("expected u2 unaffected by u1's window")
	}
	if res := l.Check(ctx, IPKey("sync", "1.2.3.4"), 1, time.Minute); !res.Allowed {
		t.Fatalf("expected IP key unaffected by user windows")
	}
}

func TestKeyDerivation(t *testing.T) {
	if got := UserKey("sync_properties", "42"); got != "sync_properties:user:42" {
		t.Fatalf("unexpected user key %s", got)
	}
	if got := IPKey("ingest", "10.0.0.1"); got != "ingest:ip:10.0.0.1" {
		t.Fatalf("unexpected ip key %s", got)
	}
}

func TestClientIP(t *testing.T) {
	req := func(remoteAddr string, headers map[string]string) *http.Request {
		r, _ := http.NewRequest("POST", "/", nil)
		r.RemoteAddr = remoteAddr
		for k, v := range headers {
			r.Header.Set(k, v)
		}
		return r
	}

	cases := []struct {
		name string
		r    *http.Request
		want string
	}{
		{"forwarded single", req("9.9.9.9:1234", map[string]string{"X-Forwarded-For": "1.2.3.4"}), "1.2.3.4"},
		{"forwarded chain takes first", req("9.9.9.9:1234", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}), "1.2.3.4"},
		{"real ip fallback", req("9.9.9.9:1234", map[string]string{"X-Real-IP": "2.3.4.5"}), "2.3.4.5"},
		{"remote addr host", req("9.9.9.9:1234", nil), "9.9.9.9"},
		{"remote addr without port", req("9.9.9.9", nil), "9.9.9.9"},
		{"nothing known", req("", nil), "unknown"},
	}

	for _, tc := range cases {
		if got := ClientIP(tc.r); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
