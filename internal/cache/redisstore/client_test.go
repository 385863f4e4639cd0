package redisstore

import (
	"context"
	"slices"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr(), WithPoolSize(4), WithMinIdleConns(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestNew_RequiresAddress(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestNew_PingFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, addr, WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatalf("expected ping error against a closed server")
	}
}

func TestSetGetMGetDel_HappyPath(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := rc.MSetWithTTL(ctx, map[string][]byte{"k2": []byte("v2"), "k3": {0, 1, 2}}, time.Minute); err != nil {
		t.Fatalf("MSetWithTTL: %v", err)
	}

	v, found, err := rc.Get(ctx, "k3")
	if err != nil || !found || !slices.Equal(v, []byte{0, 1, 2}) {
		t.Fatalf("Get k3 = %v, %v, %v", v, found, err)
	}
	if _, found, err := rc.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get missing found=%v err=%v", found, err)
	}

	got, err := rc.MGet(ctx, []string{"k1", "k2", "missing"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 || string(got["k1"]) != "v1" || string(got["k2"]) != "v2" {
		t.Fatalf("unexpected values: %+v", got)
	}

	n, err := rc.Del(ctx, "k1", "k2", "missing")
	if err != nil || n != 2 {
		t.Fatalf("Del n=%d err=%v", n, err)
	}
	if n, err := rc.Del(ctx); err != nil || n != 0 {
		t.Fatalf("empty Del n=%d err=%v", n, err)
	}
}

func TestKeys_MatchesPattern(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()

	for _, k := range []string{"moc:n:a", "moc:n:b", "moc:q:cone", "other:n:a"} {
		if err := rc.Set(ctx, k, []byte("x"), 0); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	got, err := rc.Keys(ctx, "moc:n:*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	slices.Sort(got)
	if !slices.Equal(got, []string{"moc:n:a", "moc:n:b"}) {
		t.Fatalf("Keys = %v", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "ttl-key", []byte("v"), 2*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, found, _ := rc.Get(ctx, "ttl-key"); !found {
		t.Fatalf("key missing before expiry")
	}

	mr.FastForward(3 * time.Second)

	if _, found, err := rc.Get(ctx, "ttl-key"); err != nil || found {
		t.Fatalf("after expiry found=%v err=%v", found, err)
	}
	got, err := rc.MGet(ctx, []string{"ttl-key"})
	if err != nil || len(got) != 0 {
		t.Fatalf("MGet after expiry = %v, %v", got, err)
	}
}

func TestContextCanceled(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if _, err := rc.MGet(ctx, []string{"k"}); err == nil {
		t.Fatalf("expected error on MGet with canceled context")
	}
	if _, err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
	if _, err := rc.Keys(ctx, "*"); err == nil {
		t.Fatalf("expected error on Keys with canceled context")
	}
}
