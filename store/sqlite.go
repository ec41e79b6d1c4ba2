package store

import (
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore is a Store backed by an SQLite database, for deployments where
// buffered responses must survive a process restart between the storing
// request and the consuming one.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the store database.
// Use "file::memory:?cache=shared" as the filename for an in-memory database.
func NewSQLiteStore(filename string) SQLiteStore {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("CREATE TABLE IF NOT EXISTS buffered (key TEXT PRIMARY KEY, expires INTEGER, payload BLOB)")
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("CREATE INDEX IF NOT EXISTS expires_idx ON buffered (expires)")
	if err != nil {
		panic(err)
	}
	return SQLiteStore{
		db: db,
	}
}

// GetAndRemove deletes the row and returns its payload in one statement, so
// concurrent requests for the same key cannot both get the entry.
func (s SQLiteStore) GetAndRemove(key string) ([]byte, bool, error) {
	var expires int64
	var payload []byte
	err := s.db.QueryRow("DELETE FROM buffered WHERE key = ? RETURNING expires, payload", key).
		Scan(&expires, &payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Now().After(time.Unix(expires, 0)) {
		return nil, false, nil
	}
	return payload, true, nil
}

func (s SQLiteStore) Put(key string, expires time.Time, payload []byte) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO buffered (key, expires, payload) VALUES (?, ?, ?)",
		key, expires.Unix(), payload)
	return err
}

func (s SQLiteStore) Sweep() (int, error) {
	res, err := s.db.Exec("DELETE FROM buffered WHERE expires < ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	evicted, err := res.RowsAffected()
	return int(evicted), err
}
