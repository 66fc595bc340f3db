package core

import "testing"

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); got < 9.99 || got > 10.01 {
		t.Fatalf("expected 10ms average, got %f", got)
	}
	if m.Frames() != uint64(AVG_COUNT) {
		t.Fatalf("expected %d frames, got %d", AVG_COUNT, m.Frames())
	}
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	ticked := false
	for i := 0; i < 61; i++ {
		if m.Update(1.0 / 60.0) {
			ticked = true
		}
	}
	if !ticked {
		t.Fatal("expected the fps counter to roll over after one second")
	}
	if fps := m.FPS(); fps < 59 || fps > 61 {
		t.Fatalf("expected ~60 fps, got %f", fps)
	}
}

func TestSetLogLevel(t *testing.T) {
	tests := []struct {
		level string
		ok    bool
	}{
		{"debug", true},
		{"INFO", true},
		{" warn ", true},
		{"error", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := SetLogLevel(tt.level); got != tt.ok {
			t.Errorf("SetLogLevel(%q) = %v, want %v", tt.level, got, tt.ok)
		}
	}
	SetLogLevel("info")
}
