package render

import (
	"errors"
	"math"
	"testing"
)

func TestComputePath(t *testing.T) {
	path, err := ComputePath(Rect{0, 0, 100, 100}, Rect{0, 0, 200, 200}, 5)
	if err != nil {
		t.Fatalf("ComputePath failed: %v", err)
	}

	want := []Rect{
		{0, 0, 100, 100},
		{0, 0, 125, 125},
		{0, 0, 150, 150},
		{0, 0, 175, 175},
		{0, 0, 200, 200},
	}
	if len(path) != len(want) {
		t.Fatalf("got %d rectangles, want %d", len(path), len(want))
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("step %d = %v, want %v", i, path[i], want[i])
		}
	}
}

func TestComputePath_Pan(t *testing.T) {
	start := Rect{X: 0, Y: 0, W: 50, H: 40}
	target := Rect{X: 90, Y: 30, W: 50, H: 40}

	path, err := ComputePath(start, target, 4)
	if err != nil {
		t.Fatalf("ComputePath failed: %v", err)
	}
	if path[0] != start || path[3] != target {
		t.Errorf("endpoints %v .. %v, want %v .. %v", path[0], path[3], start, target)
	}
	for i, r := range path {
		if r.W != 50 || r.H != 40 {
			t.Errorf("step %d changed size: %v", i, r)
		}
		wantX := float64(i) * 30
		if math.Abs(r.X-wantX) > 1e-9 {
			t.Errorf("step %d X = %v, want %v", i, r.X, wantX)
		}
	}
}

func TestComputePath_TooShort(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		_, err := ComputePath(Rect{}, Rect{}, n)
		var re *RenderError
		if !errors.As(err, &re) || re.Code != "PATH_TOO_SHORT" {
			t.Errorf("n=%d: expected PATH_TOO_SHORT, got %v", n, err)
		}
	}
}

func TestRect_String(t *testing.T) {
	a := Rect{X: 1.004, Y: 2, W: 3.333333, H: 4}
	b := Rect{X: 1.001, Y: 2, W: 3.33, H: 4}
	if a.String() != b.String() {
		t.Errorf("%q and %q should render equal", a.String(), b.String())
	}
	if got := a.String(); got != "1.00,2.00,3.33,4.00" {
		t.Errorf("unexpected String %q", got)
	}
}

func TestTransitionFrames(t *testing.T) {
	tests := []struct {
		secs, fps float64
		want      int
	}{
		{1.0, 25, 25},
		{0.5, 25, 12},
		{1.0, 30000.0 / 1001.0, 29},
		{0, 25, 0},
		{-1, 25, 0},
		{1, 0, 0},
	}
	for _, tt := range tests {
		if got := TransitionFrames(tt.secs, tt.fps); got != tt.want {
			t.Errorf("TransitionFrames(%v, %v) = %d, want %d", tt.secs, tt.fps, got, tt.want)
		}
	}
}

func TestPictureFrames(t *testing.T) {
	tests := []struct {
		name   string
		secs   float64
		factor float64
		trans  int
		want   int
	}{
		{"regular", 2, 1, 25, 75},
		{"scaled", 2, 2.5, 25, 150},
		{"floor at twice the transition", 0.1, 1, 25, 50},
		{"floor of two without transition", 0, 1, 0, 2},
		{"no transition", 3, 1, 0, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PictureFrames(tt.secs, 25, tt.factor, tt.trans); got != tt.want {
				t.Errorf("PictureFrames = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScaleFactor(t *testing.T) {
	tests := []struct {
		name      string
		durations []float64
		target    float64
		trans     float64
		want      float64
	}{
		{"no target", []float64{2, 2}, 0, 1, 1},
		{"stretch", []float64{2, 2}, 11, 1, 2.5},
		{"shrink", []float64{10, 10}, 11, 1, 0.5},
		{"one second per picture minimum", []float64{5, 5, 5}, 2, 1, 0.2},
		{"no pictures", nil, 10, 1, 1},
		{"zero durations", []float64{0, 0}, 10, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScaleFactor(tt.durations, tt.target, tt.trans)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ScaleFactor = %v, want %v", got, tt.want)
			}
		})
	}
}
