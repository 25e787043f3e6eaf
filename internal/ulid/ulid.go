// Package ulid wraps github.com/oklog/ulid/v2 with prefixed identifiers.
//
// Session IDs are ULIDs so that history rows sort by creation time without
// an extra index.
package ulid

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// PrefixSession marks sync session IDs
	PrefixSession = "sess"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// ULID wraps ulid.ULID with an optional prefix
type ULID struct {
	ulid.ULID
	prefix string
}

// Generate creates a new ULID with the current timestamp
func Generate() ULID {
	return NewWithTime(time.Now())
}

// GenerateWithPrefix creates a new ULID with the current timestamp and a prefix
func GenerateWithPrefix(prefix string) ULID {
	id := NewWithTime(time.Now())
	id.prefix = prefix
	return id
}

// NewWithTime creates a new ULID with a specific timestamp
func NewWithTime(t time.Time) ULID {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyLock.Unlock()
	return ULID{id, ""}
}

// Parse parses a plain or prefixed ULID string ("sess-01AN4Z07BY79KA1307SR9X4MV3")
func Parse(id string) (ULID, error) {
	prefix, rawID, found := strings.Cut(id, PrefixSeparator)
	if !found {
		rawID, prefix = id, ""
	}

	parsed, err := ulid.Parse(rawID)
	if err != nil {
		return ULID{}, err
	}

	return ULID{parsed, prefix}, nil
}

// Validate reports whether id is a plain or prefixed ULID
func Validate(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// IsZero returns true if the ULID is the zero value
func (u ULID) IsZero() bool {
	return u.ULID == ulid.ULID{}
}

// Prefix returns the prefix of the ULID
func (u ULID) Prefix() string {
	return u.prefix
}

// String returns "prefix-ulid", or the bare ULID when there is no prefix
func (u ULID) String() string {
	if u.prefix != "" {
		return u.prefix + PrefixSeparator + u.ULID.String()
	}
	return u.ULID.String()
}

// Time returns the timestamp component of the ULID
func (u ULID) Time() time.Time {
	return ulid.Time(u.ULID.Time())
}

// SessionID generates a new sync session ID
func SessionID() string {
	return GenerateWithPrefix(PrefixSession).String()
}
