package subscription

import "testing"

func TestRemainingFreezeDays(t *testing.T) {
	tests := []struct {
		name     string
		allowed  int
		used     int
		expected int
	}{
		{"untouched budget", 30, 0, 30},
		{"partially used", 30, 12, 18},
		{"exhausted", 30, 30, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Subscription{FreezeDaysAllowed: tt.allowed, FreezeDaysUsed: tt.used}
			if got := s.RemainingFreezeDays(); got != tt.expected {
				t.Errorf("Expected %d remaining days, got %d", tt.expected, got)
			}
		})
	}
}
