package repository

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// InMemReplayStore is the single-process fallback for packet replay
// protection. Entries expire lazily.
type InMemReplayStore struct {
	ttl time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewInMemReplayStore(ttl time.Duration) *InMemReplayStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &InMemReplayStore{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}
}

func (s *InMemReplayStore) Reserve(_ context.Context, digest []byte) (bool, error) {
	key := common.Bytes2Hex(digest)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.seen[key] = now.Add(s.ttl)

	// Opportunistic purge keeps the map from growing with dead digests.
	for k, expiry := range s.seen {
		if now.After(expiry) {
			delete(s.seen, k)
		}
	}
	return true, nil
}

func (s *InMemReplayStore) Release(_ context.Context, digest []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, common.Bytes2Hex(digest))
	return nil
}
