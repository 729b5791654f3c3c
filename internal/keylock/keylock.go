// Package keylock provides mutual exclusion over sets of storage keys.
package keylock

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultStripes is the number of stripes used by New when zero is passed.
const DefaultStripes = 256

// Locker serializes access to storage keys. Keys are mapped onto a fixed set
// of mutexes (stripes), so different keys may share a stripe. Locking a key
// set acquires stripes in ascending order which makes any two Lock calls
// deadlock-free regardless of key order.
type Locker struct {
	stripes []sync.Mutex
}

// New returns Locker with n stripes.
func New(n int) *Locker {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Locker{stripes: make([]sync.Mutex, n)}
}

// Lock locks all given keys and returns a function unlocking them.
func (l *Locker) Lock(keys ...[]byte) func() {
	idx := l.indices(keys)
	for _, i := range idx {
		l.stripes[i].Lock()
	}

	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}

// indices returns sorted unique stripe numbers of keys.
func (l *Locker) indices(keys [][]byte) []int {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, int(xxhash.Sum64(k)%uint64(len(l.stripes))))
	}

	sort.Ints(idx)

	res := idx[:0]
	for i, n := range idx {
		if i == 0 || n != idx[i-1] {
			res = append(res, n)
		}
	}
	return res
}
