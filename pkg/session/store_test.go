package session

import (
	"context"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	s.Set("k", "v", 0)
	got, ok := s.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected v, true; got %v, %v", got, ok)
	}
}

func TestExpiryTreatedAsAbsent(t *testing.T) {
	s := New()
	s.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := s.Get("k"); ok {
		t.Fatalf("expected expired entry to read as absent")
	}
	if s.Has("k") {
		t.Fatalf("expected Has to report false after expiry")
	}
}

func TestNeverExpiresWithZeroTTL(t *testing.T) {
	s := New()
	s.Set("k", "v", 0)
	time.Sleep(5 * time.Millisecond)
	if _, ok := s.Get("k"); !ok {
		t.Fatalf("expected zero-TTL entry to survive")
	}
}

func TestRenewExtendsTTL(t *testing.T) {
	s := New()
	s.Set("k", "v", 10*time.Millisecond)
	s.Renew("k", time.Hour)
	time.Sleep(20 * time.Millisecond)
	if _, ok := s.Get("k"); !ok {
		t.Fatalf("expected renewed entry to still be present")
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := New()
	s.Set("k", "v", 0)
	s.Delete("k")
	if s.Has("k") {
		t.Fatalf("expected deleted key to be absent")
	}
}

func TestKeysExcludesExpired(t *testing.T) {
	s := New()
	s.Set("live", "v", 0)
	s.Set("dead", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "live" {
		t.Fatalf("expected only [live], got %v", keys)
	}
}

func TestRunSweeperEvictsOnTimer(t *testing.T) {
	s := New()
	s.Set("k", "v", 2*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	go s.RunSweeper(ctx, 5*time.Millisecond)

	<-ctx.Done()
	s.mu.RLock()
	_, stillPresent := s.entries["k"]
	s.mu.RUnlock()
	if stillPresent {
		t.Fatalf("expected sweeper to have evicted expired entry")
	}
}
