package processor

import (
	"fmt"
	"sync"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	bolt "go.etcd.io/bbolt"
)

// CursorStore persists, per path and chain, the next height whose events
// have not been processed yet.
type CursorStore interface {
	Cursor(pathName, chainID string) (ibc.Height, bool, error)
	SaveCursor(pathName, chainID string, next ibc.Height) error
}

func cursorKey(pathName, chainID string) string {
	return pathName + "/" + chainID
}

// MemoryCursorStore keeps cursors for the lifetime of the process.
type MemoryCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]ibc.Height
}

func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]ibc.Height)}
}

func (s *MemoryCursorStore) Cursor(pathName, chainID string) (ibc.Height, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.cursors[cursorKey(pathName, chainID)]
	return h, ok, nil
}

func (s *MemoryCursorStore) SaveCursor(pathName, chainID string, next ibc.Height) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursorKey(pathName, chainID)] = next
	return nil
}

var cursorBucket = []byte("cursors")

// BoltCursorStore keeps cursors in a bbolt database so a restarted relayer
// resumes where it stopped.
type BoltCursorStore struct {
	db *bolt.DB
}

// OpenBoltCursorStore opens or creates the cursor database at path.
func OpenBoltCursorStore(path string) (*BoltCursorStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cursorBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltCursorStore{db: db}, nil
}

func (s *BoltCursorStore) Cursor(pathName, chainID string) (ibc.Height, bool, error) {
	var (
		h     ibc.Height
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cursorBucket).Get([]byte(cursorKey(pathName, chainID)))
		if v == nil {
			return nil
		}
		found = true
		return ibc.Unmarshal(v, &h)
	})
	if err != nil {
		return ibc.Height{}, false, fmt.Errorf("failed to read cursor of %s on %s: %w", pathName, chainID, err)
	}
	return h, found, nil
}

func (s *BoltCursorStore) SaveCursor(pathName, chainID string, next ibc.Height) error {
	bz, err := ibc.Marshal(next)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cursorBucket).Put([]byte(cursorKey(pathName, chainID)), bz)
	})
}

func (s *BoltCursorStore) Close() error {
	return s.db.Close()
}
