package gcguard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_InsertLookupEvict(t *testing.T) {
	table := NewTable()
	assert.Equal(t, 0, table.Count())

	a := table.Insert("a")
	b := table.Insert("b")
	assert.NotZero(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, table.Count())

	v, ok := table.Lookup(a)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	assert.True(t, table.Evict(a))
	assert.False(t, table.Evict(a), "second eviction finds nothing")
	_, ok = table.Lookup(a)
	assert.False(t, ok)
	assert.Equal(t, 1, table.Count())
}

func TestTable_TokensNotReused(t *testing.T) {
	table := NewTable()
	first := table.Insert(1)
	table.Evict(first)
	second := table.Insert(2)
	assert.NotEqual(t, first, second)
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable()
	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	tokens := make(chan uintptr, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tokens <- table.Insert(w*perWorker + i)
			}
		}(w)
	}
	wg.Wait()
	close(tokens)

	assert.Equal(t, workers*perWorker, table.Count())

	var evict sync.WaitGroup
	for token := range tokens {
		evict.Add(1)
		go func(token uintptr) {
			defer evict.Done()
			table.Evict(token)
		}(token)
	}
	evict.Wait()
	assert.Equal(t, 0, table.Count())
}
