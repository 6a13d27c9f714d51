// Package ids generates the request identifiers sent as X-Request-ID.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a ULID string (26 chars) stamped with now.
// IDs generated within the same millisecond stay strictly increasing.
func NewRequestID(now time.Time) string {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		// Monotonic entropy overflowed inside one millisecond.
		return ulid.Make().String()
	}
	return id.String()
}
