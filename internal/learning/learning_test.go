package learning

import "testing"

func TestRegistry_RecordEvaluationEWMA(t *testing.T) {
	r := NewRegistry()
	r.RecordEvaluation("f1", 10)
	r.RecordEvaluation("f1", 20)

	got := r.Snapshot("f1").AvgResponseMS
	want := ewmaAlpha*20 + (1-ewmaAlpha)*10
	if got != want {
		t.Fatalf("expected EWMA %v, got %v", want, got)
	}
	if r.Snapshot("f1").Triggers != 2 {
		t.Fatalf("expected 2 triggers, got %d", r.Snapshot("f1").Triggers)
	}
}

func TestRegistry_AppealMovesAccuracy(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 20; i++ {
		r.RecordEvaluation("f1", 5)
		r.RecordMatch("f1")
	}
	if acc := r.Snapshot("f1").Accuracy(); acc != 1 {
		t.Fatalf("expected perfect accuracy before appeals, got %v", acc)
	}

	r.Appeal("f1")
	acc := r.Snapshot("f1").Accuracy()
	if acc >= 1 {
		t.Fatalf("expected accuracy to drop after appeal, got %v", acc)
	}
}

func TestRegistry_ShouldAutoDisable(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < AutoDisableMinTriggers; i++ {
		r.RecordEvaluation("f1", 1)
	}
	for i := 0; i < 15; i++ {
		r.Appeal("f1")
	}

	if !r.ShouldAutoDisable("f1", 0.6) {
		t.Fatalf("expected auto-disable with accuracy below threshold")
	}
}

func TestRegistry_ShouldAutoDisable_NotEnoughSamples(t *testing.T) {
	r := NewRegistry()
	r.RecordEvaluation("f1", 1)
	r.Appeal("f1")

	if r.ShouldAutoDisable("f1", 0.99) {
		t.Fatalf("did not expect auto-disable below AutoDisableMinTriggers samples")
	}
}

func TestRegistry_Seed(t *testing.T) {
	r := NewRegistry()
	r.Seed("f1", Stats{Triggers: 50, TruePositives: 40, FalsePositives: 10})

	got := r.Snapshot("f1")
	if got.Triggers != 50 || got.FalsePositives != 10 {
		t.Fatalf("expected seeded stats to stick, got %+v", got)
	}
}
