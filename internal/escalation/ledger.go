package escalation

import (
	"hash/fnv"
	"sync"
	"time"
)

// entry is one offense record inside a ledger's sliding window.
type entry struct {
	at     time.Time
	action Action
}

// ledger is the ring of offenses for one (user, filter) pair, scoped to
// OffenseWindow (spec §3 UserOffenseLedger). Current level is derived
// from the count of entries still inside the window as of "now" —
// because old entries naturally fall out of the window, the sliding
// window itself implements rehabilitation (spec §9 Open Question:
// "sliding window over timestamps... rehabilitation by whole-window
// decay") without a separate decay pass.
type ledger struct {
	mu      sync.Mutex
	entries []entry
	maxAt   time.Time // when level last reached MaxLevel, for cooling-off
}

func (l *ledger) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.entries) && l.entries[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.entries = append([]entry{}, l.entries[i:]...)
	}
}

func (l *ledger) level(now time.Time, window, maxLevel int) int {
	l.prune(now, time.Duration(window)*time.Second)
	n := len(l.entries)
	if n > maxLevel {
		n = maxLevel
	}
	return n
}

// Machine manages ledgers for every (user, filter) pair, sharded by
// user-id hash across N locks (spec §5: "N >= 2x workers", typically
// microsecond critical sections).
type Machine struct {
	shards []shard
}

type shard struct {
	mu      sync.Mutex
	ledgers map[string]*ledger // key: userID + "\x00" + filterID
}

// NewMachine creates a Machine with the given shard count. shardCount
// should be >= 2x the worker pool size per spec §5.
func NewMachine(shardCount int) *Machine {
	if shardCount < 1 {
		shardCount = 16
	}
	m := &Machine{shards: make([]shard, shardCount)}
	for i := range m.shards {
		m.shards[i].ledgers = make(map[string]*ledger)
	}
	return m
}

func (m *Machine) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &m.shards[h.Sum32()%uint32(len(m.shards))]
}

func ledgerKey(userID, filterID string) string {
	return userID + "\x00" + filterID
}

func (m *Machine) ledgerFor(userID, filterID string) *ledger {
	sh := m.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	key := ledgerKey(userID, filterID)
	l, ok := sh.ledgers[key]
	if !ok {
		l = &ledger{}
		sh.ledgers[key] = l
	}
	return l
}

// Decide records a new offense for (userID, filterID) and returns the
// Action to take, per spec §4.3's action-selection rules.
func (m *Machine) Decide(userID, filterID string, policy Policy, now time.Time) Action {
	l := m.ledgerFor(userID, filterID)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now, policy.OffenseWindow)
	maxLevel := policy.MaxLevel
	if maxLevel < 1 {
		maxLevel = 1
	}

	level := len(l.entries) + 1
	if level > maxLevel {
		level = maxLevel
	}

	coolingOff := false
	if len(l.entries) >= maxLevel {
		if !l.maxAt.IsZero() && now.Sub(l.maxAt) < policy.CoolingOff {
			coolingOff = true
		}
	}

	action := policy.ActionForLevel(level, coolingOff)
	l.entries = append(l.entries, entry{at: now, action: action})
	if level >= maxLevel {
		l.maxAt = now
	}
	return action
}

// CurrentLevel reports the current offense level for (userID, filterID)
// without recording a new offense.
func (m *Machine) CurrentLevel(userID, filterID string, policy Policy, now time.Time) int {
	l := m.ledgerFor(userID, filterID)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level(now, int(policy.OffenseWindow.Seconds()), policy.MaxLevel)
}

// Appeal decrements the offender's level immediately by one (spec §4.3
// "Appeal acceptance decrements level immediately by one"), implemented
// by dropping the single oldest entry still inside the window so the
// count-derived level goes down by exactly one.
func (m *Machine) Appeal(userID, filterID string, now time.Time, window time.Duration) {
	l := m.ledgerFor(userID, filterID)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now, window)
	if len(l.entries) == 0 {
		return
	}
	l.entries = l.entries[1:]
}

// GC drops ledgers whose most recent entry is older than
// max(offense_window_seconds) across all filters, per spec §3's
// lifecycle note. Call periodically from a maintenance goroutine.
func (m *Machine) GC(now time.Time, maxWindow time.Duration) {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for key, l := range sh.ledgers {
			l.mu.Lock()
			stale := len(l.entries) == 0 || now.Sub(l.entries[len(l.entries)-1].at) > maxWindow
			l.mu.Unlock()
			if stale {
				delete(sh.ledgers, key)
			}
		}
		sh.mu.Unlock()
	}
}
