// Package identity issues the sequential "<PREFIX>-<n>" identifiers used for
// reservations and users.
package identity

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const (
	// ReservationPrefix prefixes reservation identifiers (RES-1, RES-2, ...).
	ReservationPrefix = "RES"
	// UserPrefix prefixes user identifiers (USER-1001, USER-1002, ...).
	UserPrefix = "USER"
	// UserFloor is the high-water mark of an empty user registry, so the first
	// user id issued is USER-1001.
	UserFloor uint64 = 1000
)

// Sequence is a monotonic identifier generator. It remembers the highest
// number it has issued or observed and never goes backwards.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	floor  uint64
	last   uint64
}

// NewSequence constructs a generator whose first identifier is floor+1.
func NewSequence(prefix string, floor uint64) *Sequence {
	if prefix == "" {
		prefix = "ID"
	}
	return &Sequence{prefix: prefix, floor: floor, last: floor}
}

// Peek returns the identifier Next would return, without consuming it.
func (s *Sequence) Peek() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format(s.last + 1)
}

// Next consumes and returns the next identifier.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.format(s.last)
}

// Observe raises the high-water mark to the number carried by id. Identifiers
// with a foreign prefix or a malformed suffix are ignored.
func (s *Sequence) Observe(id string) {
	n, ok := Parse(s.prefix, id)
	if !ok {
		return
	}
	s.mu.Lock()
	if n > s.last {
		s.last = n
	}
	s.mu.Unlock()
}

// Reseed resets the generator to max(floor, numbers in ids) so that the next
// identifier never collides with a persisted one.
func (s *Sequence) Reseed(ids []string) {
	s.mu.Lock()
	s.last = s.floor
	s.mu.Unlock()
	for _, id := range ids {
		s.Observe(id)
	}
}

func (s *Sequence) format(n uint64) string {
	return fmt.Sprintf("%s-%d", s.prefix, n)
}

// Parse extracts n from "<prefix>-<n>". It reports false for any other shape,
// including signs, whitespace, and empty suffixes.
func Parse(prefix, id string) (uint64, bool) {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
