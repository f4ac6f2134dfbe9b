package eviction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOEvictsOldestInsertedFirst(t *testing.T) {
	p := NewFIFO[string]()
	p.OnInsert("a")
	p.OnInsert("b")
	p.OnInsert("c")
	p.OnAccess("a") // FIFO ignores access order

	victim, ok := p.SelectVictim(nil)
	require.True(t, ok)
	assert.Equal(t, "a", victim)

	p.OnRemove("a")
	victim, ok = p.SelectVictim(nil)
	require.True(t, ok)
	assert.Equal(t, "b", victim)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	p := NewLRU[string](8)
	p.OnInsert("a")
	p.OnInsert("b")
	p.OnInsert("c")
	p.OnAccess("a")

	victim, ok := p.SelectVictim(nil)
	require.True(t, ok)
	assert.Equal(t, "b", victim)
}

func TestLFUPrefersLeastAccessedThenMostIdle(t *testing.T) {
	p := NewLFU[string]()
	candidates := []Candidate[string]{
		{Key: "a", AccessCount: 5, IdleNanos: 10},
		{Key: "b", AccessCount: 1, IdleNanos: 100},
		{Key: "c", AccessCount: 1, IdleNanos: 500},
	}
	victim, ok := p.SelectVictim(candidates)
	require.True(t, ok)
	assert.Equal(t, "c", victim, "ties on AccessCount break toward the most idle candidate")
}

func TestSelectVictimOnEmptySample(t *testing.T) {
	_, ok := NewFIFO[string]().SelectVictim(nil)
	assert.False(t, ok)
	_, ok = NewLRU[string](4).SelectVictim(nil)
	assert.False(t, ok)
	_, ok = NewLFU[string]().SelectVictim(nil)
	assert.False(t, ok)
}
