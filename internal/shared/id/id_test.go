package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"attach", NewAttachID().String(), AttachPrefix},
		{"request", NewRequestID().String(), RequestPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := strings.Split(tt.id, "_")
			require.Len(t, parts, 2)
			assert.Equal(t, tt.prefix, parts[0])
			assert.Len(t, parts[1], 26)
			assert.True(t, IsValid(parts[1]))
		})
	}
}

func TestIsValidRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "invalid", "1234567890", "zzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		assert.False(t, IsValid(s), s)
	}
}

func TestTimestamp(t *testing.T) {
	gen := NewGenerator()

	before := time.Now().UnixMilli()
	s := gen.Generate().String()
	after := time.Now().UnixMilli()

	ts, err := Timestamp(s)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts.UnixMilli(), before)
	assert.LessOrEqual(t, ts.UnixMilli(), after)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const perGoroutine = 100

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, goroutines*perGoroutine)
		wg   sync.WaitGroup
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				s := gen.GenerateWithPrefix(AttachPrefix)
				mu.Lock()
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestDefaultGeneratorIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
