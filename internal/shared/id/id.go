// Package id provides ULID-based identifiers for demos, tasks and frame peers.
//
// Task tokens are drawn from a monotonic entropy source so that two tokens
// minted within the same millisecond still sort in minting order. The live
// demo controller only compares tokens for equality; ordering is kept for
// logs and debugging.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DemoID identifies a demo in the catalogue
type DemoID string

// TaskToken identifies one scheduled execution of a demo's source
type TaskToken string

const (
	DemoPrefix = "demo"
	TaskPrefix = "task"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with monotonic, cryptographically seeded entropy
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
		now:     time.Now,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewDemoID generates an id for a demo that has none in its manifest
func NewDemoID() DemoID {
	return DemoID(Default().GenerateWithPrefix(DemoPrefix))
}

// NewTaskToken mints a fresh task token
func NewTaskToken() TaskToken {
	return TaskToken(Default().GenerateWithPrefix(TaskPrefix))
}

func (id DemoID) String() string   { return string(id) }
func (t TaskToken) String() string { return string(t) }
func (t TaskToken) IsZero() bool   { return t == "" }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
