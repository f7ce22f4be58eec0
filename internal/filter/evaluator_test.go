package filter

import (
	"context"
	"testing"
	"time"

	"github.com/notarikon-nz/notabot/internal/chat"
	"github.com/notarikon-nz/notabot/internal/escalation"
	"github.com/notarikon-nz/notabot/internal/pattern"
)

func mustWeighted(t *testing.T, spec pattern.Spec) pattern.Weighted {
	t.Helper()
	w, err := pattern.Compile(spec)
	if err != nil {
		t.Fatalf("compile %+v: %v", spec, err)
	}
	return w
}

// cryptoSpamFilter builds a filter matching spec scenario S1/S4.
func cryptoSpamFilter(t *testing.T) *Filter {
	f := NewFilter()
	f.ID = "crypto_spam"
	f.Name = "crypto spam"
	f.Enabled = true
	f.Priority = 9
	f.ConfidenceThreshold = 0.5
	f.Patterns = []pattern.Weighted{
		mustWeighted(t, pattern.Spec{Family: "literal", Target: "free crypto", Weight: 1.0}),
	}
	f.Escalation = escalation.Policy{
		FirstOffense:  escalation.Action{Kind: escalation.ActionWarnUser, Message: "Please avoid promotional content."},
		RepeatOffense: escalation.Action{Kind: escalation.ActionTimeoutUser},
		OffenseWindow: time.Hour,
		MaxLevel:      5,
		BaseDuration:  1800 * time.Second,
	}
	return f
}

// TestEvaluate_S1_FirstOffenseWarn matches spec scenario S1.
func TestEvaluate_S1_FirstOffenseWarn(t *testing.T) {
	snap := &Snapshot{Filters: []*Filter{cryptoSpamFilter(t)}, PerFilterBudget: 100 * time.Millisecond, PerMessageBudget: 10 * time.Millisecond}
	machine := escalation.NewMachine(4)
	msg := chat.Message{UserID: "u1", Content: "check out this free crypto giveaway"}

	d := Evaluate(context.Background(), msg, snap, machine, time.Now())
	if d.MatchedFilterID != "crypto_spam" {
		t.Fatalf("expected crypto_spam match, got %+v", d)
	}
	if d.Action.Kind != escalation.ActionWarnUser {
		t.Fatalf("expected WarnUser, got %v", d.Action.Kind)
	}
	if d.Confidence < 0.9 {
		t.Fatalf("expected confidence >= 0.9, got %v", d.Confidence)
	}
}

// TestEvaluate_S5_SubscriberExemption: a subscriber-exempt filter never
// fires for a subscriber, regardless of content.
func TestEvaluate_S5_SubscriberExemption(t *testing.T) {
	f := NewFilter()
	f.ID = "link_filter"
	f.Enabled = true
	f.Priority = 5
	f.ConfidenceThreshold = 0.3
	f.ExemptionLevel = ExemptSubscriber
	f.Patterns = []pattern.Weighted{
		mustWeighted(t, pattern.Spec{Family: "literal", Target: "http", Weight: 1.0}),
	}

	snap := &Snapshot{Filters: []*Filter{f}, PerFilterBudget: 100 * time.Millisecond, PerMessageBudget: 10 * time.Millisecond}
	machine := escalation.NewMachine(4)
	msg := chat.Message{UserID: "sub1", Content: "check http://example.com", IsSubscriber: true}

	d := Evaluate(context.Background(), msg, snap, machine, time.Now())
	if d.MatchedFilterID != "" {
		t.Fatalf("expected no match for exempt subscriber, got %+v", d)
	}
	if d.Action.Kind != escalation.ActionPass {
		t.Fatalf("expected Pass, got %v", d.Action.Kind)
	}
}

// TestEvaluate_S6_NoMatchIsPass verifies a clean message never touches
// the escalation ledger.
func TestEvaluate_S6_NoMatchIsPass(t *testing.T) {
	snap := &Snapshot{Filters: []*Filter{cryptoSpamFilter(t)}, PerFilterBudget: 100 * time.Millisecond, PerMessageBudget: 10 * time.Millisecond}
	machine := escalation.NewMachine(4)
	msg := chat.Message{UserID: "u2", Content: "hello everyone, great stream today"}

	d := Evaluate(context.Background(), msg, snap, machine, time.Now())
	if d.Action.Kind != escalation.ActionPass {
		t.Fatalf("expected Pass, got %+v", d)
	}
	if level := machine.CurrentLevel("u2", "crypto_spam", escalation.Policy{OffenseWindow: time.Hour, MaxLevel: 5}, time.Now()); level != 0 {
		t.Fatalf("expected untouched ledger, got level %d", level)
	}
}

// TestEvaluate_ChecksEveryEligibleFilterEvenOnPass verifies that a
// filter which was scored but fell short of its own confidence
// threshold still shows up in Checked, so C8's trigger count reflects
// every evaluation rather than only the message's eventual winner.
func TestEvaluate_ChecksEveryEligibleFilterEvenOnPass(t *testing.T) {
	weak := NewFilter()
	weak.ID = "weak_spam"
	weak.Enabled = true
	weak.Priority = 5
	weak.ConfidenceThreshold = 0.99
	weak.Patterns = []pattern.Weighted{mustWeighted(t, pattern.Spec{Family: "literal", Target: "spam", Weight: 0.5})}

	snap := &Snapshot{Filters: []*Filter{weak}, PerFilterBudget: 100 * time.Millisecond, PerMessageBudget: 10 * time.Millisecond}
	machine := escalation.NewMachine(4)
	msg := chat.Message{UserID: "u4", Content: "this is spam"}

	d := Evaluate(context.Background(), msg, snap, machine, time.Now())
	if d.Action.Kind != escalation.ActionPass {
		t.Fatalf("expected Pass since confidence falls short of threshold, got %+v", d)
	}
	if len(d.Checked) != 1 || d.Checked[0].FilterID != "weak_spam" {
		t.Fatalf("expected weak_spam to be recorded as checked even without a match, got %+v", d.Checked)
	}
}

// TestEvaluate_PriorityOrder ensures the higher-priority filter wins
// even when both would match.
func TestEvaluate_PriorityOrder(t *testing.T) {
	low := NewFilter()
	low.ID = "a_low"
	low.Enabled = true
	low.Priority = 1
	low.ConfidenceThreshold = 0.3
	low.Patterns = []pattern.Weighted{mustWeighted(t, pattern.Spec{Family: "literal", Target: "spam", Weight: 1.0})}

	high := NewFilter()
	high.ID = "z_high"
	high.Enabled = true
	high.Priority = 10
	high.ConfidenceThreshold = 0.3
	high.Patterns = []pattern.Weighted{mustWeighted(t, pattern.Spec{Family: "literal", Target: "spam", Weight: 1.0})}

	snap := &Snapshot{Filters: []*Filter{high, low}, PerFilterBudget: 100 * time.Millisecond, PerMessageBudget: 10 * time.Millisecond}
	machine := escalation.NewMachine(4)
	msg := chat.Message{UserID: "u3", Content: "this is spam"}

	d := Evaluate(context.Background(), msg, snap, machine, time.Now())
	if d.MatchedFilterID != "z_high" {
		t.Fatalf("expected higher-priority filter to win, got %+v", d)
	}
}
