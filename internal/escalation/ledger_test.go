package escalation

import (
	"testing"
	"time"
)

func samplePolicy() Policy {
	return Policy{
		FirstOffense:  Action{Kind: ActionWarnUser, Message: "warned"},
		RepeatOffense: Action{Kind: ActionTimeoutUser, TimeoutDuration: 0},
		OffenseWindow: time.Hour,
		MaxLevel:      5,
		CoolingOff:    10 * time.Minute,
		BaseDuration:  300 * time.Second,
	}
}

// TestMachine_S4_RepeatOffense matches spec scenario S4: two matches
// within the offense window; second decision doubles the base duration.
func TestMachine_S4_RepeatOffense(t *testing.T) {
	m := NewMachine(4)
	policy := samplePolicy()
	now := time.Now()

	first := m.Decide("viewer3", "f1", policy, now)
	if first.Kind != ActionWarnUser {
		t.Fatalf("expected first offense WarnUser, got %v", first.Kind)
	}

	second := m.Decide("viewer3", "f1", policy, now.Add(time.Minute))
	if second.Kind != ActionTimeoutUser {
		t.Fatalf("expected TimeoutUser, got %v", second.Kind)
	}
	if second.TimeoutDuration != 600*time.Second {
		t.Fatalf("expected 600s timeout, got %v", second.TimeoutDuration)
	}
}

// TestMachine_Rehabilitation: an offense outside the window no longer
// contributes to level (invariant 6: decay by exactly 1 per window).
func TestMachine_Rehabilitation(t *testing.T) {
	m := NewMachine(4)
	policy := samplePolicy()
	now := time.Now()

	m.Decide("viewer4", "f1", policy, now)
	level := m.CurrentLevel("viewer4", "f1", policy, now.Add(2*time.Hour))
	if level != 0 {
		t.Fatalf("expected level 0 after window elapsed, got %d", level)
	}
}

// TestMachine_Appeal verifies immediate one-level decrement.
func TestMachine_Appeal(t *testing.T) {
	m := NewMachine(4)
	policy := samplePolicy()
	now := time.Now()

	m.Decide("viewer1", "crypto_spam", policy, now)
	m.Decide("viewer1", "crypto_spam", policy, now.Add(time.Minute))
	if level := m.CurrentLevel("viewer1", "crypto_spam", policy, now.Add(time.Minute)); level != 2 {
		t.Fatalf("expected level 2 before appeal, got %d", level)
	}

	m.Appeal("viewer1", "crypto_spam", now.Add(time.Minute), policy.OffenseWindow)
	if level := m.CurrentLevel("viewer1", "crypto_spam", policy, now.Add(time.Minute)); level != 1 {
		t.Fatalf("expected level 1 after appeal, got %d", level)
	}
}

func TestPolicy_EscalatedDurationCap(t *testing.T) {
	p := samplePolicy()
	p.MaxTimeout = time.Hour
	d := p.escalatedDuration(10) // would be 300 * 2^9 without cap
	if d != time.Hour {
		t.Fatalf("expected duration capped at 1h, got %v", d)
	}
}

func TestMachine_CoolingOffAttenuates(t *testing.T) {
	m := NewMachine(4)
	policy := samplePolicy()
	policy.MaxLevel = 2
	policy.RepeatOffense = Action{Kind: ActionBanUser}
	now := time.Now()

	m.Decide("viewer9", "f1", policy, now)
	second := m.Decide("viewer9", "f1", policy, now.Add(time.Second))
	if second.Kind != ActionBanUser {
		t.Fatalf("expected ban at max level, got %v", second.Kind)
	}

	// Third match while still cooling off: attenuated one step from Ban -> Timeout.
	third := m.Decide("viewer9", "f1", policy, now.Add(2*time.Second))
	if third.Kind != ActionTimeoutUser {
		t.Fatalf("expected attenuated TimeoutUser during cooling-off, got %v", third.Kind)
	}
}
