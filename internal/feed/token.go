package feed

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// TokenGenerator issues unique request tokens for correlation across logs
// and reports.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator issues time-ordered UUIDv7 tokens, so tokens sort by
// request arrival.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string. Falls back to UUIDv4 in the
// unlikely event the system clock is unusable.
func (UUIDv7Generator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// FixedGenerator issues deterministic sequential tokens. Test use only.
type FixedGenerator struct {
	counter atomic.Uint64
}

// Generate returns "request-1", "request-2", ...
func (g *FixedGenerator) Generate() string {
	return fmt.Sprintf("request-%d", g.counter.Add(1))
}
