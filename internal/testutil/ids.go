package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator yields "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic invocation IDs in golden traces. Unlike
// engine.FixedGenerator it never runs out.
//
// Thread-safety: SequenceGenerator is safe for concurrent use.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix becomes
// "test-inv".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "test-inv"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate implements engine.IDGenerator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
