package models

import "testing"

func TestClassifyTemperature(t *testing.T) {
	tests := []struct {
		name string
		temp float64
		want TemperatureStatus
	}{
		{"well below range", 20, TemperatureLow},
		{"just below lower bound", 34.9, TemperatureLow},
		{"lower bound is safe", 35, TemperatureSafe},
		{"middle of range", 38, TemperatureSafe},
		{"upper bound is safe", 43, TemperatureSafe},
		{"just above upper bound", 43.1, TemperatureHigh},
		{"well above range", 60, TemperatureHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTemperature(tt.temp); got != tt.want {
				t.Fatalf("ClassifyTemperature(%v) = %q, want %q", tt.temp, got, tt.want)
			}
		})
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	for _, status := range []SessionStatus{SessionReady, SessionBottlePlaced, SessionInProgress} {
		if status.Terminal() {
			t.Fatalf("status %q should not be terminal", status)
		}
	}
	if !SessionCompleted.Terminal() {
		t.Fatal("completed status should be terminal")
	}
}
