package impact

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestReconcileSheriffScenario(t *testing.T) {
	got := ReconcileConflictingImpacts([]Impact{
		{Target: Reputation{Subject: "sheriff"}, Value: 6, Severity: SeverityMinor, RelatedDecisionIDs: []string{"d2"}},
		{Target: Reputation{Subject: "sheriff"}, Value: 6, Severity: SeverityMajor, RelatedDecisionIDs: []string{"d1", "d2"}},
	})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Value != 9 {
		t.Fatalf("value = %v, want 9", got[0].Value)
	}
	if got[0].Severity != SeverityMajor {
		t.Fatalf("severity = %q, want major", got[0].Severity)
	}
	if len(got[0].RelatedDecisionIDs) != 2 || got[0].RelatedDecisionIDs[0] != "d1" || got[0].RelatedDecisionIDs[1] != "d2" {
		t.Fatalf("related ids = %v, want [d1 d2]", got[0].RelatedDecisionIDs)
	}
}

func TestReconcileKeepsGroupOrderAndKinds(t *testing.T) {
	got := ReconcileConflictingImpacts([]Impact{
		{Target: StoryArc{Arc: "main"}, Value: 10, Severity: SeverityModerate},
		{Target: Reputation{Subject: "main"}, Value: 2, Severity: SeverityMinor},
		{Target: StoryArc{Arc: "main"}, Value: 10, Severity: SeverityModerate},
		{Target: StoryArc{Arc: "main"}, Value: 9, Severity: SeverityModerate},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Target != (StoryArc{Arc: "main"}) || got[1].Target != (Reputation{Subject: "main"}) {
		t.Fatalf("order = %#v, %#v", got[0].Target, got[1].Target)
	}
	// 10 + 10*0.5 + 9*0.25 clamps at 10 for every kind.
	if got[0].Value != 10 {
		t.Fatalf("story arc value = %v, want 10", got[0].Value)
	}
}

func TestReconcileEmpty(t *testing.T) {
	if got := ReconcileConflictingImpacts(nil); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestReconcileSingletonIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		in := make([]Impact, n)
		for i := range in {
			in[i] = Impact{
				Target:   Reputation{Subject: string(rune('a' + i))},
				Value:    rapid.Float64Range(-40, 40).Draw(rt, "value"),
				Severity: rapid.SampledFrom([]Severity{SeverityMinor, SeverityModerate, SeverityMajor}).Draw(rt, "severity"),
			}
		}
		out := ReconcileConflictingImpacts(in)
		if len(out) != len(in) {
			rt.Fatalf("len = %d, want %d", len(out), len(in))
		}
		for i := range in {
			if out[i].Target != in[i].Target || out[i].Value != in[i].Value || out[i].Severity != in[i].Severity {
				rt.Fatalf("out[%d] = %#v, want %#v", i, out[i], in[i])
			}
		}
	})
}

func TestReconcileMagnitudeBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 10).Draw(rt, "n")
		baseValue := rapid.Float64Range(-10, 10).Draw(rt, "base")
		limit := math.Abs(baseValue)
		in := []Impact{{Target: WorldState{Name: "flag"}, Value: baseValue, Severity: SeverityMajor}}
		for i := 1; i < n; i++ {
			in = append(in, Impact{
				Target:   WorldState{Name: "flag"},
				Value:    rapid.Float64Range(-limit, limit).Draw(rt, "follower"),
				Severity: rapid.SampledFrom([]Severity{SeverityMinor, SeverityModerate}).Draw(rt, "severity"),
			})
		}

		out := ReconcileConflictingImpacts(in)
		if len(out) != 1 {
			rt.Fatalf("len = %d, want 1", len(out))
		}
		factor := 1.0
		for i := 1; i < n; i++ {
			factor += 0.5 / float64(i)
		}
		bound := math.Min(limit*factor, 10) + 1e-9
		if math.Abs(out[0].Value) > bound {
			rt.Fatalf("|%v| exceeds bound %v", out[0].Value, bound)
		}
		if out[0].Value < -10 || out[0].Value > 10 {
			rt.Fatalf("value %v out of [-10,10]", out[0].Value)
		}
	})
}
