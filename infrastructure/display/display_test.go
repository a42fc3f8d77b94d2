package display

import (
	"testing"

	"audio-extractor/domain/media"
)

func TestDiscard(t *testing.T) {
	d := NewDiscard(nil)

	if got := d.LastTimestamp(); got != -1 {
		t.Errorf("LastTimestamp() = %d, want -1", got)
	}

	for i := 0; i < 3; i++ {
		frame := media.VideoFrame{TimestampMicros: int64(i) * 33_333, Width: 4, Height: 2, Pixels: make([]byte, 4*2*3)}
		if err := d.Render(frame); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
	}

	if got := d.Frames(); got != 3 {
		t.Errorf("Frames() = %d, want 3", got)
	}
	if got := d.LastTimestamp(); got != 66_666 {
		t.Errorf("LastTimestamp() = %d, want 66666", got)
	}

	bad := media.VideoFrame{Width: 4, Height: 2, Pixels: make([]byte, 5)}
	if err := d.Render(bad); err == nil {
		t.Error("Render() with short pixel buffer error = nil")
	}

	if err := d.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if err := d.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
	if err := d.Render(media.VideoFrame{}); err == nil {
		t.Error("Render() after Release() error = nil")
	}
}

func TestIsQuitKey(t *testing.T) {
	tests := []struct {
		key  int
		want bool
	}{
		{'q', true},
		{'Q', true},
		{27, true},
		{-1, false},
		{' ', false},
	}

	for _, tt := range tests {
		if got := isQuitKey(tt.key); got != tt.want {
			t.Errorf("isQuitKey(%d) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
