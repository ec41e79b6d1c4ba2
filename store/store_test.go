package store

import (
	"bytes"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemStoreGetAndRemoveConsumesEntry(t *testing.T) {
	s := NewMemStore()
	if err := s.Put("/a", time.Now().Add(time.Minute), []byte("payload")); err != nil {
		t.Fatal(err)
	}

	payload, ok, err := s.GetAndRemove("/a")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want a hit", ok, err)
	}
	if !bytes.Equal(payload, []byte("payload")) {
		t.Fatalf("payload = %q", payload)
	}

	if _, ok, _ := s.GetAndRemove("/a"); ok {
		t.Fatal("entry served twice")
	}
}

func TestMemStoreAtMostOnceUnderConcurrency(t *testing.T) {
	s := NewMemStore()
	if err := s.Put("/a", time.Now().Add(time.Minute), []byte("payload")); err != nil {
		t.Fatal(err)
	}

	var hits int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := s.GetAndRemove("/a"); ok {
				atomic.AddInt64(&hits, 1)
			}
		}()
	}
	wg.Wait()

	if hits != 1 {
		t.Fatalf("entry delivered %d times, want exactly 1", hits)
	}
}

func TestMemStoreExpiredEntryIsMiss(t *testing.T) {
	s := NewMemStore()
	if err := s.Put("/a", time.Now().Add(-time.Second), []byte("stale")); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := s.GetAndRemove("/a"); ok {
		t.Fatal("expired entry served")
	}
}

func TestMemStoreSweepEvictsExpired(t *testing.T) {
	s := NewMemStore()
	s.Put("/stale", time.Now().Add(-time.Second), []byte("stale"))
	s.Put("/live", time.Now().Add(time.Minute), []byte("live"))

	evicted, err := s.Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 1 {
		t.Fatalf("evicted %d entries, want 1", evicted)
	}
	if _, ok, _ := s.GetAndRemove("/live"); !ok {
		t.Fatal("live entry evicted")
	}
}

func TestScopedStoreIsolatesSessions(t *testing.T) {
	s := NewMemStore()
	first := Scoped(s, "session-1")
	second := Scoped(s, "session-2")

	if err := first.Put("/a", time.Now().Add(time.Minute), []byte("mine")); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := second.GetAndRemove("/a"); ok {
		t.Fatal("entry visible across sessions")
	}
	if _, ok, _ := first.GetAndRemove("/a"); !ok {
		t.Fatal("entry lost in its own session")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "buffers.db"))
	if err := s.Put("/a", time.Now().Add(time.Minute), []byte("payload")); err != nil {
		t.Fatal(err)
	}

	payload, ok, err := s.GetAndRemove("/a")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v, want a hit", ok, err)
	}
	if !bytes.Equal(payload, []byte("payload")) {
		t.Fatalf("payload = %q", payload)
	}
	if _, ok, _ := s.GetAndRemove("/a"); ok {
		t.Fatal("entry served twice")
	}
}

func TestSQLiteStoreSweep(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "buffers.db"))
	s.Put("/stale", time.Now().Add(-time.Minute), []byte("stale"))
	s.Put("/live", time.Now().Add(time.Minute), []byte("live"))

	evicted, err := s.Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 1 {
		t.Fatalf("evicted %d entries, want 1", evicted)
	}
}
