package pkg

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripedMutex(t *testing.T) {
	m := NewStripedMutex(4)
	counters := make(map[int64]int)
	var mu sync.Mutex // guards map growth only

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := int64(i % 3)
			unlock := m.Lock(key)
			defer unlock()

			mu.Lock()
			v := counters[key]
			mu.Unlock()
			v++
			mu.Lock()
			counters[key] = v
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 34, counters[0])
	assert.Equal(t, 33, counters[1])
	assert.Equal(t, 33, counters[2])
}

func TestStripedMutex_NegativeKeyAndDefault(t *testing.T) {
	m := NewStripedMutex(0)
	assert.Len(t, m.stripes, 64)

	unlock := m.Lock(-7)
	unlock()
}
