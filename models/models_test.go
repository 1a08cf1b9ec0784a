package models

import "testing"

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want SessionStatus
	}{
		{"waiting", SessionWaiting},
		{"active", SessionActive},
		{"resolved", SessionResolved},
		{"abandoned", SessionAbandoned},
		{"", SessionWaiting},
		{"bogus", SessionWaiting},
	}
	for _, tt := range tests {
		if got := NormalizeStatus(tt.raw); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		raw  string
		want SessionPriority
	}{
		{"low", PriorityLow},
		{"medium", PriorityMedium},
		{"high", PriorityHigh},
		{"urgent", PriorityUrgent},
		{"", PriorityMedium},
		{"critical", PriorityMedium},
	}
	for _, tt := range tests {
		if got := NormalizePriority(tt.raw); got != tt.want {
			t.Errorf("NormalizePriority(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	if !(PriorityUrgent.Rank() > PriorityHigh.Rank() &&
		PriorityHigh.Rank() > PriorityMedium.Rank() &&
		PriorityMedium.Rank() > PriorityLow.Rank()) {
		t.Error("priority ranks are not strictly ordered urgent > high > medium > low")
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		status SessionStatus
		want   bool
	}{
		{SessionWaiting, false},
		{SessionActive, false},
		{SessionResolved, true},
		{SessionAbandoned, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%q.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestTempMessageID(t *testing.T) {
	a := NewTempMessageID()
	b := NewTempMessageID()
	if a == b {
		t.Error("two temp IDs collided")
	}
	if !IsTempID(a) {
		t.Errorf("IsTempID(%q) = false, want true", a)
	}
	if IsTempID("6b9c63c5-7f2a-4f83-9f3e-000000000000") {
		t.Error("server-style UUID reported as temp ID")
	}
}
