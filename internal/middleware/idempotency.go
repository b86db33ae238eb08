package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

type IdempotencyRecord struct {
	Status     int
	Body       []byte
	CreatedAt  time.Time
	Processing bool
}

type IdempotencyStore interface {
	// GetOrLock returns (record, true) if exists; (nil,false) if newly locked by caller.
	GetOrLock(key string) (*IdempotencyRecord, bool)
	Save(key string, status int, body []byte)
	Unlock(key string)
}

// InMemIdempotencyStore backs single-instance deployments; multi-instance
// ones use the Redis store. Entries are copied on read so callers never
// alias the map.
type InMemIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]IdempotencyRecord
}

func NewInMemIdempotencyStore() *InMemIdempotencyStore {
	return &InMemIdempotencyStore{entries: make(map[string]IdempotencyRecord)}
}

// GetOrLock fetches the record for key, or locks the key for the caller when
// no record exists yet. A Processing record means another request holds the
// lock right now.
func (s *InMemIdempotencyStore) GetOrLock(key string) (*IdempotencyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.entries[key]; ok {
		return &rec, true
	}
	s.entries[key] = IdempotencyRecord{Processing: true, CreatedAt: time.Now()}
	return nil, false
}

func (s *InMemIdempotencyStore) Save(key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = IdempotencyRecord{Status: status, Body: body, CreatedAt: time.Now()}
}

func (s *InMemIdempotencyStore) Unlock(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Idempotency replays the cached response for a repeated X-Idempotency-Key.
// A settlement retried after a network timeout must not sweep twice. Must
// run after CallerAuth; keys are scoped per caller.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		idemKey := c.GetHeader(HeaderIdempotencyKey)
		if idemKey == "" {
			c.Next()
			return
		}

		caller, ok := CallerFrom(c)
		if !ok {
			c.Next()
			return
		}

		fullKey := caller.Address.Hex() + ":" + idemKey

		record, hit := store.GetOrLock(fullKey)
		if hit {
			if record.Processing {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request in progress"})
				return
			}
			c.Data(record.Status, "application/json; charset=utf-8", record.Body)
			c.Abort()
			return
		}

		// Capture the response body so a retry can replay it verbatim.
		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Server errors stay retryable: unlock without caching. Everything
		// else is cached, including business failures, because retrying an
		// aborted batch with the same key should report the same abort.
		if c.Writer.Status() < 500 {
			store.Save(fullKey, c.Writer.Status(), w.body.Bytes())
		} else {
			store.Unlock(fullKey)
		}
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
