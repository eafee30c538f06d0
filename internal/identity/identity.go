// Package identity produces record identifiers.
package identity

import (
	"encoding/base64"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

type Generator interface {
	NewID() string
}

// GeneratorFunc adapts a plain function to a Generator.
type GeneratorFunc func() string

func (f GeneratorFunc) NewID() string {
	return f()
}

// Random returns short URL-safe ids: the first six random bytes of a v4 UUID,
// base64url encoded without padding (8 characters).
type Random struct{}

func (Random) NewID() string {
	u := uuid.New()
	return base64.RawURLEncoding.EncodeToString(u[:6])
}

// Sequence hands out prefix1, prefix2, ... Useful wherever ids must be predictable.
type Sequence struct {
	Prefix string

	mu   sync.Mutex
	next int
}

func NewSequence(prefix string) *Sequence {
	return &Sequence{Prefix: prefix}
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.Prefix + strconv.Itoa(s.next)
}
