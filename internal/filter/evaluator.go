package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/notarikon-nz/notabot/internal/chat"
	"github.com/notarikon-nz/notabot/internal/escalation"
	"github.com/notarikon-nz/notabot/internal/pattern"
)

// Decision is the outcome of routing one message through a Snapshot
// (spec §4.2 Contract: evaluate(message, snapshot) -> Decision).
type Decision struct {
	MatchedFilterID string
	Action          escalation.Action
	Reason          string
	Confidence      float64
	LatencyMS       float64

	// Checked carries one entry per eligible filter actually scored
	// against the message, win or lose, so C8 can increment triggers for
	// every evaluation (spec §4.2 "updates C8... either way", §4.8 "for
	// every evaluation: increment triggers") rather than only the filter
	// that ultimately matched.
	Checked []FilterCheck
}

// FilterCheck is one filter's id and the time its own scoring took,
// independent of whether it crossed its confidence threshold.
type FilterCheck struct {
	FilterID  string
	LatencyMS float64
}

// pass is the zero-cost decision for a message that triggered no filter.
func pass(latencyMS float64) Decision {
	return Decision{Action: escalation.Action{Kind: escalation.ActionPass}, LatencyMS: latencyMS}
}

// Snapshot is an immutable, ready-to-evaluate filter set (spec §4.2,
// §6 ConfigSnapshot). Filters must already be sorted by priority
// descending, id ascending on tie, by whoever builds the Snapshot (the
// config layer, C4) — the evaluator never re-sorts on the hot path.
type Snapshot struct {
	Filters []*Filter

	// MaxFiltersPerMessage caps how many eligible filters are actually
	// scored per message, zero means unbounded.
	MaxFiltersPerMessage int

	// PerFilterBudget bounds a single filter's pattern evaluation (spec
	// §4.2 "per-filter soft budget", default 100ms).
	PerFilterBudget time.Duration

	// PerMessageBudget bounds the whole evaluate() call (spec §4.2
	// "per-message hard budget", default 5ms parallel / 10ms serial).
	PerMessageBudget time.Duration
}

// score aggregates this filter's patterns against text: the overall
// confidence is the max of each pattern's (confidence * weight), per
// the pattern engine's doc comment. The reported reason names the
// highest-scoring pattern family for logging/appeals.
func (f *Filter) score(ctx context.Context, text string, perFilterBudget time.Duration) (float64, string) {
	best := 0.0
	reason := ""
	for _, w := range f.Patterns {
		r := pattern.EvaluateBudgeted(ctx, w, text, perFilterBudget)
		if r.Err != nil || !r.Matched {
			continue
		}
		c := r.Confidence * w.Weight
		if c > best {
			best = c
			reason = fmt.Sprintf("%s matched in filter %q", w.Pattern.Kind(), f.Name)
		}
	}
	return best, reason
}

// Evaluate routes message through snapshot's filters in priority order
// and short-circuits on the first filter whose aggregated confidence
// meets its own threshold (spec §4.2 "Evaluation order"). On a hit, the
// matching filter's escalation policy is resolved against machine's
// per-(user,filter) offense ledger so the returned Decision carries a
// concrete Action, not just a match.
func Evaluate(ctx context.Context, message chat.Message, snapshot *Snapshot, machine *escalation.Machine, now time.Time) Decision {
	start := time.Now()
	elapsed := func() float64 { return float64(time.Since(start)) / float64(time.Millisecond) }

	if snapshot == nil || len(snapshot.Filters) == 0 {
		return pass(elapsed())
	}

	budget := snapshot.PerMessageBudget
	if budget <= 0 {
		budget = 10 * time.Millisecond
	}
	mctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	checked := 0
	checkedFilters := make([]FilterCheck, 0, len(snapshot.Filters))
	for _, f := range snapshot.Filters {
		if snapshot.MaxFiltersPerMessage > 0 && checked >= snapshot.MaxFiltersPerMessage {
			break
		}
		if mctx.Err() != nil {
			break
		}
		if !f.eligible(message, now) {
			continue
		}
		checked++

		perFilterBudget := snapshot.PerFilterBudget
		if perFilterBudget <= 0 {
			perFilterBudget = 100 * time.Millisecond
		}

		filterStart := time.Now()
		confidence, reason := f.score(mctx, message.Content, perFilterBudget)
		filterLatencyMS := float64(time.Since(filterStart)) / float64(time.Millisecond)
		checkedFilters = append(checkedFilters, FilterCheck{FilterID: f.ID, LatencyMS: filterLatencyMS})

		if confidence < f.ConfidenceThreshold {
			continue
		}

		action := machine.Decide(message.UserID, f.ID, f.Escalation, now)
		return Decision{
			MatchedFilterID: f.ID,
			Action:          action,
			Reason:          reason,
			Confidence:      confidence,
			LatencyMS:       elapsed(),
			Checked:         checkedFilters,
		}
	}

	result := pass(elapsed())
	result.Checked = checkedFilters
	return result
}
