package logger

import (
	"testing"
)

func TestProgressBarRender(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		current int
		want    string
	}{
		{"empty", 8, 0, "[          ] 0/8 (0%)"},
		{"half", 8, 4, "[=====     ] 4/8 (50%)"},
		{"full", 8, 8, "[==========] 8/8 (100%)"},
		{"zero total", 0, 0, "[          ] 0/0 (0%)"},
		{"over total clamps", 8, 12, "[==========] 12/8 (100%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewProgressBar(tt.total, 10, false)
			pb.Update(tt.current)
			if got := pb.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressBarIncrement(t *testing.T) {
	pb := NewProgressBar(4, 10, false)

	pb.Increment()
	pb.Increment()

	if pb.Current() != 2 {
		t.Errorf("Current() = %d, want 2", pb.Current())
	}
	if pb.Percentage() != 50 {
		t.Errorf("Percentage() = %d, want 50", pb.Percentage())
	}
}

func TestProgressBarDefaultWidth(t *testing.T) {
	pb := NewProgressBar(10, 0, false)
	pb.Update(10)

	if got := pb.Render(); got != "[==========] 10/10 (100%)" {
		t.Errorf("Render() = %q, want default 10-wide bar", got)
	}
}
