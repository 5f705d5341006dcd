package pkg

import "sync"

// StripedMutex fixed set of mutexes selected by key, serializes work per key
type StripedMutex struct {
	stripes []sync.Mutex
}

// NewStripedMutex create StripedMutex with n stripes
func NewStripedMutex(n int) *StripedMutex {
	if n <= 0 {
		n = 64
	}
	return &StripedMutex{stripes: make([]sync.Mutex, n)}
}

// Lock locks the stripe of key and returns its unlock func
func (s *StripedMutex) Lock(key int64) func() {
	idx := key % int64(len(s.stripes))
	if idx < 0 {
		idx = -idx
	}
	m := &s.stripes[idx]
	m.Lock()
	return m.Unlock
}
