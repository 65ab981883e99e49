package board

import (
	"sync"
	"sync/atomic"
	"time"
)

// OperationStats tracks metrics for a single GraphQL operation name.
type OperationStats struct {
	Count       int64
	TotalTimeNs int64
	Errors      int64
}

// Stats tracks API call statistics for one Client, including the mutation
// counter spec.md §4.2 calls out as an observable side effect.
type Stats struct {
	mu         sync.RWMutex
	operations map[string]*OperationStats

	mutations       int64 // atomic
	rateLimitWaitNs int64 // atomic
}

func newStats() *Stats {
	return &Stats{operations: make(map[string]*OperationStats)}
}

func (s *Stats) record(opName string, d time.Duration, err error, isMutation bool) {
	s.mu.Lock()
	st, ok := s.operations[opName]
	if !ok {
		st = &OperationStats{}
		s.operations[opName] = st
	}
	st.Count++
	st.TotalTimeNs += d.Nanoseconds()
	if err != nil {
		st.Errors++
	}
	s.mu.Unlock()

	if isMutation && err == nil {
		atomic.AddInt64(&s.mutations, 1)
	}
}

func (s *Stats) recordRateLimitWait(d time.Duration) {
	atomic.AddInt64(&s.rateLimitWaitNs, d.Nanoseconds())
}

// Mutations returns the number of successful mutations performed so far.
func (s *Stats) Mutations() int64 { return atomic.LoadInt64(&s.mutations) }

// RateLimitWait returns cumulative time spent waiting on the rate limiter.
func (s *Stats) RateLimitWait() time.Duration {
	return time.Duration(atomic.LoadInt64(&s.rateLimitWaitNs))
}

// Operation returns a snapshot of one operation's stats.
func (s *Stats) Operation(name string) OperationStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.operations[name]; ok {
		return *st
	}
	return OperationStats{}
}
