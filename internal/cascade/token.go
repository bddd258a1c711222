package cascade

import (
	"sync"

	"github.com/google/uuid"
)

// TokenSource mints instance tokens. Every Store carries one token for
// its whole lifetime; traces and log lines stamp it so output from
// coexisting engine instances can be told apart.
type TokenSource interface {
	Generate() string
}

// UUIDv7Source generates time-sortable UUIDv7 instance tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making
// tokens sortable by creation time, which is helpful when reading
// interleaved logs from several instances.
//
// Thread-safety: UUIDv7Source is stateless and safe for concurrent use.
type UUIDv7Source struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Source) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedSource returns predetermined tokens for testing.
//
// This keeps golden traces byte-stable: tests provide known tokens and
// the trace output never varies run to run.
//
// Thread-safety: FixedSource is safe for concurrent use via internal
// mutex.
type FixedSource struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedSource creates a source that returns tokens in order.
//
// Example:
//
//	src := NewFixedSource("engine-1", "engine-2")
//	src.Generate() // "engine-1"
//	src.Generate() // "engine-2"
//	src.Generate() // panic: all tokens exhausted
func NewFixedSource(tokens ...string) *FixedSource {
	return &FixedSource{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics when all tokens are consumed; a test that mints more engines
// than it declared tokens for is misconfigured and should fail fast.
func (s *FixedSource) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.tokens) {
		panic("FixedSource: all tokens exhausted")
	}
	token := s.tokens[s.idx]
	s.idx++
	return token
}
