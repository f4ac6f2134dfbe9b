package cachecore

import "sync/atomic"

// Statistics is a monotonic counter bundle tracking the outcomes the
// ActionPipeline classifies. All fields are safe for concurrent use; callers
// read a point-in-time Snapshot rather than the live counters.
type Statistics struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	puts        atomic.Uint64
	removals    atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

// Snapshot is an immutable point-in-time read of a Statistics bundle.
type Snapshot struct {
	Hits        uint64
	Misses      uint64
	Puts        uint64
	Removals    uint64
	Evictions   uint64
	Expirations uint64
}

// CacheHitPercentage returns Hits / (Hits + Misses) as a percentage, or 0
// when no reads have been recorded yet.
func (s Snapshot) CacheHitPercentage() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

func (s *Statistics) snapshot() Snapshot {
	return Snapshot{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Puts:        s.puts.Load(),
		Removals:    s.removals.Load(),
		Evictions:   s.evictions.Load(),
		Expirations: s.expirations.Load(),
	}
}

func (s *Statistics) recordHit()        { s.hits.Add(1) }
func (s *Statistics) recordMiss()       { s.misses.Add(1) }
func (s *Statistics) recordPut()        { s.puts.Add(1) }
func (s *Statistics) recordRemoval()    { s.removals.Add(1) }
func (s *Statistics) recordEviction()   { s.evictions.Add(1) }
func (s *Statistics) recordExpiration() { s.expirations.Add(1) }

// statsDelta is the data-driven statistics rule consulted by the
// ActionPipeline's fourth stage: which counters a given ChangeStatus should
// move for a particular public operation. Per spec.md §4.4/§9, the table is
// data attached to each operation, not polymorphism over ChangeStatus.
type statsDelta struct {
	Hit     bool
	Miss    bool
	Put     bool
	Removal bool
}

func (d statsDelta) apply(s *Statistics) {
	if d.Hit {
		s.recordHit()
	}
	if d.Miss {
		s.recordMiss()
	}
	if d.Put {
		s.recordPut()
	}
	if d.Removal {
		s.recordRemoval()
	}
}

// statsRule maps a ChangeStatus produced by one particular operation onto a
// statsDelta. Each derived operation in cache.go supplies its own rule
// rather than sharing one generic table, since (per the CREATED-column
// open question in spec.md §9) the same ChangeStatus means different things
// to different callers of Store.ComposeAndClassify.
type statsRule func(status ChangeStatus) statsDelta

func putStatsRule(status ChangeStatus) statsDelta {
	switch status {
	case Created:
		return statsDelta{Put: true}
	case Changed:
		return statsDelta{Hit: true, Put: true}
	default:
		return statsDelta{}
	}
}

func putIfAbsentStatsRule(status ChangeStatus) statsDelta {
	switch status {
	case Created:
		return statsDelta{Miss: true, Put: true}
	case Unchanged:
		return statsDelta{Hit: true}
	default:
		return statsDelta{}
	}
}

// replaceStatsRule covers replace(k,v), replace(k,old,new) and
// getAndReplace. Per the resolved open question in spec.md §9 (and
// DESIGN.md), the replace family's mutator never installs a brand-new
// entry, so Created is unreachable here; it is still tabulated for
// documentation parity with spec.md §4.4's table.
func replaceStatsRule(status ChangeStatus) statsDelta {
	switch status {
	case Created:
		return statsDelta{Miss: true}
	case Changed:
		return statsDelta{Hit: true, Put: true}
	case Unchanged:
		return statsDelta{Miss: true}
	case CASFailedEquals:
		return statsDelta{Hit: true}
	default:
		return statsDelta{}
	}
}

func getStatsRule(hadValue bool) statsDelta {
	if hadValue {
		return statsDelta{Hit: true}
	}
	return statsDelta{Miss: true}
}

// removeStatsRule covers remove(k) and remove(k,v). ChangeStatus.Removed is
// the "real" removal; Unchanged means the key was already absent;
// CASFailedEquals means the expected-value check on remove(k,v) failed.
func removeStatsRule(status ChangeStatus) statsDelta {
	switch status {
	case Removed:
		return statsDelta{Removal: true}
	case Unchanged:
		return statsDelta{Miss: true}
	case CASFailedEquals:
		return statsDelta{Hit: true}
	default:
		return statsDelta{}
	}
}
