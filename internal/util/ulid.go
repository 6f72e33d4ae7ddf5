package util

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

var entropy = &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)}

// New returns a ULID for the current time. IDs minted by one process sort in
// creation order.
func New() string {
	return ulid.MustNew(ulid.Now(), entropy).String()
}
