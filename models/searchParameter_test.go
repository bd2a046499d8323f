package models

import "testing"

func TestSearchParameterValues(t *testing.T) {
	p := NewSearchParameter("rate", 0.01, 0.03, 0.01)
	values := p.Values()
	if len(values) != 3 || values[0] != 0.01 || values[2] != 0.03 {
		t.Errorf("unexpected values %v", values)
	}
	if err := NewSearchParameter("rate", 1, 0, 0.1).Validate(); err == nil {
		t.Error("expected an error for max below min")
	}
	if err := NewSearchParameter("rate", 0, 1, 0).Validate(); err == nil {
		t.Error("expected an error for a zero step")
	}
}

func TestSearchParameterSnap(t *testing.T) {
	p := NewSearchParameter("wing_width", 5, 15, 5)
	tests := []struct {
		in, want float64
	}{
		{4, 5},
		{7.4, 5},
		{7.6, 10},
		{14.9, 15},
		{40, 15},
	}
	for _, tt := range tests {
		if got := p.Snap(tt.in); got != tt.want {
			t.Errorf("Snap(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := p.SetValue(-3); got != 5 {
		t.Errorf("SetValue(-3) = %v, want 5", got)
	}
}
