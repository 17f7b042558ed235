package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.Generate().String()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGenerateMonotonic(t *testing.T) {
	gen := NewGenerator()

	prev := gen.Generate()
	for i := 0; i < 500; i++ {
		next := gen.Generate()
		assert.Equal(t, 1, next.Compare(prev), "ids must strictly increase")
		prev = next
	}
}

func TestTaskTokenFormat(t *testing.T) {
	tok := NewTaskToken()

	require.True(t, strings.HasPrefix(tok.String(), TaskPrefix+"_"))
	parts := strings.SplitN(tok.String(), "_", 2)
	assert.True(t, IsValid(parts[1]))
	assert.False(t, tok.IsZero())
	assert.True(t, TaskToken("").IsZero())
}

func TestNewDemoID(t *testing.T) {
	a, b := NewDemoID(), NewDemoID()

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a.String(), DemoPrefix+"_"))
}
