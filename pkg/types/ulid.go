package types

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidULIDLength    = errors.New("types: invalid ULID length")
	ErrInvalidULIDCharacter = errors.New("types: invalid ULID character")
)

// ULID is a 128-bit lexicographically sortable identifier: a 48-bit
// millisecond timestamp followed by 80 bits of entropy.
type ULID [16]byte

// Crockford's Base32 alphabet (excludes I, L, O, U)
const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const ulidStringLen = 26

// ULIDGenerator produces ULIDs that are monotonic within a millisecond.
// Entropy is read from the configured reader, so a seeded reader yields a
// reproducible id stream. The generator is not safe for concurrent use.
type ULIDGenerator struct {
	entropy       io.Reader
	lastTimestamp uint64
	lastRandom    [10]byte
	started       bool
}

// NewULIDGenerator creates a generator reading entropy from r.
// A nil reader falls back to crypto/rand.
func NewULIDGenerator(r io.Reader) *ULIDGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &ULIDGenerator{entropy: r}
}

// GenerateWithTime returns the next ULID for timestamp t.
// Callers feeding non-decreasing timestamps get strictly increasing ids.
func (g *ULIDGenerator) GenerateWithTime(t time.Time) (ULID, error) {
	ts := uint64(t.UnixMilli()) & 0xFFFFFFFFFFFF

	if g.started && ts <= g.lastTimestamp {
		ts = g.lastTimestamp
		g.increment()
	} else {
		if _, err := io.ReadFull(g.entropy, g.lastRandom[:]); err != nil {
			return ULID{}, err
		}
		g.lastTimestamp = ts
		g.started = true
	}
	return NewULIDFromTimestamp(ts, g.lastRandom[:]), nil
}

func (g *ULIDGenerator) increment() {
	for i := len(g.lastRandom) - 1; i >= 0; i-- {
		g.lastRandom[i]++
		if g.lastRandom[i] != 0 {
			return
		}
	}
}

// NewULIDFromTimestamp assembles a ULID from a millisecond timestamp and
// at least 10 bytes of entropy.
func NewULIDFromTimestamp(timestamp uint64, random []byte) ULID {
	var u ULID
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestamp)
	copy(u[:6], ts[2:])
	copy(u[6:], random[:10])
	return u
}

// Timestamp returns the timestamp component in Unix milliseconds.
func (u ULID) Timestamp() uint64 {
	var ts [8]byte
	copy(ts[2:], u[:6])
	return binary.BigEndian.Uint64(ts[:])
}

// Time returns the timestamp component as a UTC time.
func (u ULID) Time() time.Time {
	return time.UnixMilli(int64(u.Timestamp())).UTC()
}

// Bytes returns the raw 16 bytes.
func (u ULID) Bytes() []byte {
	return u[:]
}

// String encodes the ULID as 26 Crockford Base32 characters.
func (u ULID) String() string {
	hi := binary.BigEndian.Uint64(u[:8])
	lo := binary.BigEndian.Uint64(u[8:])

	var buf [ulidStringLen]byte
	// 130 encoded bits; the leading character carries the top 3 bits.
	for i := ulidStringLen - 1; i >= 0; i-- {
		buf[i] = crockfordBase32[lo&31]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(buf[:])
}

// Compare orders two ULIDs lexicographically.
func (u ULID) Compare(other ULID) int {
	for i := range u {
		switch {
		case u[i] < other[i]:
			return -1
		case u[i] > other[i]:
			return 1
		}
	}
	return 0
}

// ParseULID decodes a 26-character Crockford Base32 string.
func ParseULID(s string) (ULID, error) {
	if len(s) != ulidStringLen {
		return ULID{}, ErrInvalidULIDLength
	}
	var hi, lo uint64
	for i := 0; i < ulidStringLen; i++ {
		d := decodeBase32(s[i])
		if d == 0xFF {
			return ULID{}, ErrInvalidULIDCharacter
		}
		if i == 0 && d > 7 {
			// Overflows 128 bits.
			return ULID{}, ErrInvalidULIDCharacter
		}
		hi = hi<<5 | lo>>59
		lo = lo<<5 | uint64(d)
	}
	var u ULID
	binary.BigEndian.PutUint64(u[:8], hi)
	binary.BigEndian.PutUint64(u[8:], lo)
	return u, nil
}

func decodeBase32(c byte) byte {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'H':
		return c - 'A' + 10
	case c == 'J' || c == 'K':
		return c - 'J' + 18
	case c == 'M' || c == 'N':
		return c - 'M' + 20
	case c >= 'P' && c <= 'T':
		return c - 'P' + 22
	case c >= 'V' && c <= 'Z':
		return c - 'V' + 27
	default:
		return 0xFF
	}
}

// ULIDFromBytes copies a 16-byte slice into a ULID.
func ULIDFromBytes(b []byte) (ULID, error) {
	if len(b) != len(ULID{}) {
		return ULID{}, ErrInvalidULIDLength
	}
	var u ULID
	copy(u[:], b)
	return u, nil
}
