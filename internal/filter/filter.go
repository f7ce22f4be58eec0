// Package filter implements the filter set and evaluator (spec §4.2):
// an ordered collection of Filters, each built from weighted patterns,
// routed a message at a time through priority order with short-circuit
// on first decisive hit.
package filter

import (
	"time"

	"github.com/notarikon-nz/notabot/internal/chat"
	"github.com/notarikon-nz/notabot/internal/escalation"
	"github.com/notarikon-nz/notabot/internal/pattern"
)

// ExemptionLevel is the minimum user role a Filter still applies to:
// users at or above this level are skipped entirely (spec glossary
// "Exemption level"). None means the filter applies to everyone.
type ExemptionLevel int

const (
	ExemptNone ExemptionLevel = iota
	ExemptRegular
	ExemptSubscriber
	ExemptModerator
	ExemptOwner
)

// exempts reports whether role sits at or above level (level=None never
// exempts anyone).
func (level ExemptionLevel) exempts(role chat.Role) bool {
	if level == ExemptNone {
		return false
	}
	return int(role)+1 >= int(level)
}

// ActiveWindow restricts a Filter to certain hours/days (spec §3).
type ActiveWindow struct {
	Hours []int // 0-23, empty = all hours
	Days  []time.Weekday
}

func (w *ActiveWindow) includes(t time.Time) bool {
	if w == nil {
		return true
	}
	if len(w.Hours) > 0 && !containsInt(w.Hours, t.Hour()) {
		return false
	}
	if len(w.Days) > 0 && !containsDay(w.Days, t.Weekday()) {
		return false
	}
	return true
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsDay(xs []time.Weekday, v time.Weekday) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Filter is a compiled, evaluation-ready filter (spec §3 Filter). It is
// immutable once built into a ConfigSnapshot.
type Filter struct {
	ID       string
	Name     string
	Enabled  bool
	Category string
	Priority int // 0-10, higher evaluates first

	Patterns []pattern.Weighted

	CaseSensitive   bool
	WholeWordsOnly  bool
	ExemptionLevel  ExemptionLevel
	ExemptUsers     map[string]bool
	ActiveHours     *ActiveWindow
	MinAccountAge   int
	Escalation      escalation.Policy
	CustomMessage   string
	SilentMode      bool
	Tags            []string

	ConfidenceThreshold float64
	LearningEnabled     bool
	AutoDisableThresh   float64

	// AutoDisabled is set only through SetAutoDisabled. Nothing in this
	// module calls SetAutoDisabled: learning.Registry.ShouldAutoDisable
	// reports when accuracy drops below AutoDisableThresh with enough
	// samples, but no caller acts on it, so filters are not disabled
	// automatically. The flag lives on the Filter value inside a snapshot;
	// because snapshots are immutable and shared by reference, it is an
	// atomic flag that can be flipped without a new snapshot build.
	autoDisabled *atomicBool
}

// NewFilter wires up the auto-disable flag. Call after populating all
// other fields.
func NewFilter() *Filter {
	return &Filter{autoDisabled: newAtomicBool()}
}

// IsAutoDisabled reports the current auto-disable state.
func (f *Filter) IsAutoDisabled() bool { return f.autoDisabled.Load() }

// SetAutoDisabled flips the auto-disable state (spec §4.8/§8 invariant 7:
// stays disabled until on-disk config changes or an operator re-enables).
func (f *Filter) SetAutoDisabled(v bool) { f.autoDisabled.Store(v) }

// eligible implements the eligibility gate of spec §4.2, in order:
// enabled, not exempt user, exemption level, active hours/days, min
// account age, not auto-disabled.
func (f *Filter) eligible(msg chat.Message, now time.Time) bool {
	if !f.Enabled || f.IsAutoDisabled() {
		return false
	}
	if f.ExemptUsers[msg.UserID] {
		return false
	}
	if f.ExemptionLevel.exempts(msg.Role()) {
		return false
	}
	if !f.ActiveHours.includes(now) {
		return false
	}
	if msg.AccountAgeDays < f.MinAccountAge {
		return false
	}
	return true
}
