// Package state persists the small amount of sync state that must
// survive restarts: the learned remote replica ID and a record of the
// last completed reconciliation pass.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory
	// (~/.guidesync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database
	// lock. A second guidesync process holding the lock fails fast.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket    = []byte("app")
	remoteIDKey  = []byte("remote_id")
	remoteURLKey = []byte("remote_url")
	lastSyncKey  = []byte("last_sync")
)

// SyncRecord describes the outcome of the last reconciliation pass.
type SyncRecord struct {
	Classification string    `json:"classification"`
	Action         string    `json:"action"`
	Trigger        string    `json:"trigger"`
	Error          string    `json:"error,omitempty"`
	Time           time.Time `json:"time"`
}

// State wraps a bbolt database for all persistent application state.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.guidesync/state.db, creating it if
// it does not exist.
func Load() (*State, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}

	return LoadAt(filepath.Join(home, ".guidesync", "state.db"))
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close releases the database lock.
func (s *State) Close() error {
	return s.db.Close()
}

// RemoteID returns the persisted remote replica ID, or "" when no remote
// identity has been learned yet.
func (s *State) RemoteID() string {
	return s.getString(remoteIDKey)
}

// RemoteURL returns the persisted remote replica URL, or "".
func (s *State) RemoteURL() string {
	return s.getString(remoteURLKey)
}

// SetRemote persists the remote identity returned by a create. Called
// once, the first time an upload mints a new replica.
func (s *State) SetRemote(id, url string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)

		if err := b.Put(remoteIDKey, []byte(id)); err != nil {
			return err
		}

		return b.Put(remoteURLKey, []byte(url))
	})
	if err != nil {
		return fmt.Errorf("saving remote identity: %w", err)
	}

	return nil
}

// LastSync returns the record of the last completed pass, or nil when no
// pass has run yet.
func (s *State) LastSync() (*SyncRecord, error) {
	var raw []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(appBucket).Get(lastSyncKey); v != nil {
			raw = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading last sync record: %w", err)
	}

	if raw == nil {
		return nil, nil
	}

	var rec SyncRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding last sync record: %w", err)
	}

	return &rec, nil
}

// SetLastSync persists the outcome of a completed pass.
func (s *State) SetLastSync(rec SyncRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding last sync record: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(lastSyncKey, raw)
	})
	if err != nil {
		return fmt.Errorf("saving last sync record: %w", err)
	}

	return nil
}

func (s *State) getString(key []byte) string {
	var out string

	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(appBucket).Get(key); v != nil {
			out = string(v)
		}

		return nil
	})

	return out
}
