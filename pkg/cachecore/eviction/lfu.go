package eviction

// LFU is a stateless sampled-LFU policy in the style of Caffeine/Ristretto's
// admission filters: rather than maintaining exact frequency counters for
// every key, it picks its victim from a small weakly-consistent sample
// taken at eviction time, choosing the least-frequently-accessed candidate
// and breaking ties in favor of the most idle one. It requires no
// OnInsert/OnAccess/OnRemove bookkeeping because the Store already tracks
// per-entry access counts and last-access times.
type LFU[K comparable] struct{}

// NewLFU creates a sampled-LFU policy.
func NewLFU[K comparable]() *LFU[K] { return &LFU[K]{} }

func (LFU[K]) Name() string { return "lfu" }

func (LFU[K]) OnInsert(K) {}
func (LFU[K]) OnAccess(K) {}
func (LFU[K]) OnRemove(K) {}

func (LFU[K]) SelectVictim(candidates []Candidate[K]) (K, bool) {
	var zero K
	if len(candidates) == 0 {
		return zero, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.AccessCount < best.AccessCount ||
			(c.AccessCount == best.AccessCount && c.IdleNanos > best.IdleNanos) {
			best = c
		}
	}
	return best.Key, true
}
