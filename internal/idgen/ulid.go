// Package idgen generates the 26-character, lexicographically-sortable
// identifiers used for every entity in the data model.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// entropy is a single, mutex-guarded monotonic entropy source shared across
// all ID generation in the process. ulid.MonotonicReader is not safe for
// concurrent use on its own, so access is serialized here.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string, e.g. "01HQZX3K1Y8E4G6S8N2V7J5B3R".
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
