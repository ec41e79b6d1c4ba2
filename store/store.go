// Package store maps canonical URLs to buffered response payloads with
// retrieve-and-remove semantics: an entry is delivered to at most one reader.
package store

import (
	"sync"
	"time"
)

// Store is a buffered-response store.
// It stores []byte values, which represent serialized page responses,
// and keeps track of expiration times so orphaned entries (a client that
// never followed its redirect) can be evicted.
//
// Implementations must be thread-safe. GetAndRemove must be atomic: a stored
// entry may be returned to at most one caller, ever.
type Store interface {
	// GetAndRemove returns the payload stored under key and removes it.
	// The boolean reports whether a live (non-expired) entry was found.
	GetAndRemove(key string) ([]byte, bool, error)
	// Put stores the payload under key, replacing any previous entry.
	// The entry becomes eligible for eviction after expires.
	Put(key string, expires time.Time, payload []byte) error
	// Sweep removes all expired entries and returns how many were evicted.
	Sweep() (int, error)
}

type memEntry struct {
	expires time.Time
	payload []byte
}

// MemStore is an in-memory Store.
type MemStore struct {
	mutex *sync.Mutex
	db    map[string]memEntry
}

func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.Mutex{},
		db:    make(map[string]memEntry),
	}
}

func (m MemStore) GetAndRemove(key string) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entry, ok := m.db[key]
	if !ok {
		return nil, false, nil
	}
	delete(m.db, key)
	if time.Now().After(entry.expires) {
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (m MemStore) Put(key string, expires time.Time, payload []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = memEntry{expires, payload}
	return nil
}

func (m MemStore) Sweep() (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	evicted := 0
	now := time.Now()
	for key, entry := range m.db {
		if now.After(entry.expires) {
			delete(m.db, key)
			evicted++
		}
	}
	return evicted, nil
}

// Scoped returns a view of s with every key prefixed by scope.
// Used to partition one store between sessions, so a buffered response is
// only ever consumed by the session that produced it.
func Scoped(s Store, scope string) Store {
	return scoped{inner: s, prefix: scope + " "}
}

type scoped struct {
	inner  Store
	prefix string
}

func (s scoped) GetAndRemove(key string) ([]byte, bool, error) {
	return s.inner.GetAndRemove(s.prefix + key)
}

func (s scoped) Put(key string, expires time.Time, payload []byte) error {
	return s.inner.Put(s.prefix+key, expires, payload)
}

func (s scoped) Sweep() (int, error) {
	return s.inner.Sweep()
}
