package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("auto_approve=on,legacy_audit_view=off,inbox_cache=true,relay_v2=false,a=1,b=0")

	if !m.Enabled("auto_approve", 1) || !m.Enabled("inbox_cache", 1) || !m.Enabled("a", 1) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("legacy_audit_view", 1) || m.Enabled("relay_v2", 1) || m.Enabled("b", 1) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	if !m.Enabled("always", 1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", 1) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	if m.Enabled("canary", 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,auto_approve=on, inbox_cache = 20% ,relay_v2=off ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d", len(raw))
	}
	if raw["auto_approve"] != "on" || raw["inbox_cache"] != "20%" || raw["relay_v2"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	snap := m.Snapshot(123)
	if len(snap) != 3 {
		t.Fatalf("expected snapshot size 3, got %d", len(snap))
	}
}

func TestUnknownFlagDisabled(t *testing.T) {
	m := NewManager("auto_approve=on")
	if m.Enabled("does_not_exist", 7) {
		t.Fatal("unknown flags must evaluate false")
	}
}
