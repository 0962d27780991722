package tracker

import (
	"errors"
	"math"
	"testing"

	"github.com/taigrr/vergence/pkg/gaze"
	"github.com/taigrr/vergence/pkg/math3d"
)

// fixate builds a frame with both eyes looking at p from a 64mm baseline.
func fixate(p math3d.Vec3) Frame {
	left := math3d.V3(-0.032, 0, 0)
	right := math3d.V3(0.032, 0, 0)
	return Frame{
		Left:     gaze.NewRay(left, p.Sub(left)),
		Right:    gaze.NewRay(right, p.Sub(right)),
		Combined: gaze.NewRay(math3d.Zero3(), p),
	}
}

// blink builds a frame with parallel eye rays.
func blink() Frame {
	fwd := math3d.V3(0, 0, 1)
	return Frame{
		Left:     gaze.NewRay(math3d.V3(-0.032, 0, 0), fwd),
		Right:    gaze.NewRay(math3d.V3(0.032, 0, 0), fwd),
		Combined: gaze.NewRay(math3d.Zero3(), fwd),
	}
}

func TestUpdateDefinedFrame(t *testing.T) {
	p := math3d.V3(0.1, -0.2, 0.6)
	tr := New(Config{})

	est := tr.Update(fixate(p))
	if !est.Intersection.Defined() || !est.Closest.Defined() {
		t.Fatalf("undefined estimates: %v, %v", est.Intersection.Err, est.Closest.Err)
	}
	want := p.Len()
	if math.Abs(est.ClosestDistance-want) > 1e-6 || math.Abs(est.IntersectionDistance-want) > 1e-6 {
		t.Errorf("distances = %v, %v, want %v", est.ClosestDistance, est.IntersectionDistance, want)
	}
	if est.Distance != est.ClosestDistance {
		t.Errorf("unsmoothed Distance = %v, want %v", est.Distance, est.ClosestDistance)
	}
	if !est.Marker.ApproxEqual(p, 1e-6) {
		t.Errorf("Marker = %v, want %v", est.Marker, p)
	}
	if est.Held {
		t.Error("Held should be false for a defined frame")
	}
}

func TestUpdateHoldsThroughBlink(t *testing.T) {
	tr := New(Config{})

	first := tr.Update(blink())
	if !first.Held {
		t.Error("first blink should be held")
	}
	if first.ClosestDistance != DefaultInitialDistance || first.IntersectionDistance != DefaultInitialDistance {
		t.Errorf("distances before any fixation = %v, %v, want %v",
			first.ClosestDistance, first.IntersectionDistance, DefaultInitialDistance)
	}
	if !errors.Is(first.Closest.Err, gaze.ErrDegenerateLines) {
		t.Errorf("Closest err = %v, want ErrDegenerateLines", first.Closest.Err)
	}
	if !first.Marker.ApproxEqual(math3d.V3(0, 0, DefaultInitialDistance), 1e-12) {
		t.Errorf("Marker = %v, want initial distance along gaze", first.Marker)
	}

	p := math3d.V3(0, 0, 0.5)
	fix := tr.Update(fixate(p))
	held := tr.Update(blink())
	if !held.Held {
		t.Error("blink after fixation should be held")
	}
	if held.ClosestDistance != fix.ClosestDistance || held.IntersectionDistance != fix.IntersectionDistance {
		t.Errorf("held distances = %v, %v, want %v, %v",
			held.ClosestDistance, held.IntersectionDistance, fix.ClosestDistance, fix.IntersectionDistance)
	}
	if !held.Marker.ApproxEqual(p, 1e-6) {
		t.Errorf("held Marker = %v, want %v", held.Marker, p)
	}
}

func TestSmoothing(t *testing.T) {
	tr := New(Config{SmoothingFrequency: 6, FPS: 90})
	p := math3d.V3(0, 0, 0.4)

	first := tr.Update(fixate(p))
	if !(first.Distance < DefaultInitialDistance && first.Distance > 0.4) {
		t.Errorf("first smoothed distance = %v, want between 0.4 and %v", first.Distance, DefaultInitialDistance)
	}
	if math.Abs(first.ClosestDistance-0.4) > 1e-9 {
		t.Errorf("raw ClosestDistance = %v, want 0.4", first.ClosestDistance)
	}

	prev := first.Distance
	var est Estimate
	for range 5 * 90 {
		est = tr.Update(fixate(p))
		if est.Distance > prev+1e-12 {
			t.Fatalf("critically damped spring overshot: %v after %v", est.Distance, prev)
		}
		prev = est.Distance
	}
	if math.Abs(est.Distance-0.4) > 1e-3 {
		t.Errorf("smoothed distance after 5s = %v, want 0.4", est.Distance)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := New(Config{}).Config()
	if cfg.InitialDistance != DefaultInitialDistance || cfg.Damping != 1 || cfg.FPS != DefaultFPS {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestReset(t *testing.T) {
	tr := New(Config{InitialDistance: 2, SmoothingFrequency: 4})
	tr.Update(fixate(math3d.V3(0, 0, 0.3)))
	tr.Reset()

	est := tr.Update(blink())
	if est.ClosestDistance != 2 || est.Distance != 2 {
		t.Errorf("after reset distances = %v, %v, want 2", est.ClosestDistance, est.Distance)
	}
}

func TestVergenceDistance(t *testing.T) {
	if d, ok := VergenceDistance(math3d.V3(0, 0, 0), math3d.V3(3, 4, 0)); !ok || d != 5 {
		t.Errorf("VergenceDistance = %v, %v, want 5, true", d, ok)
	}
	if _, ok := VergenceDistance(math3d.V3(0, 0, 0), math3d.NaN3()); ok {
		t.Error("NaN point should not yield a distance")
	}
}

func TestMarkerPosition(t *testing.T) {
	g := gaze.NewRay(math3d.V3(0, 1.6, 0), math3d.V3(0, 0, 2))
	if got := MarkerPosition(g, 0.75); got != math3d.V3(0, 1.6, 0.75) {
		t.Errorf("MarkerPosition = %v", got)
	}
	if got := MarkerPosition(gaze.Ray{}, 1); !got.IsNaN() {
		t.Errorf("invalid gaze marker = %v, want NaN", got)
	}
}
