// Package tracker turns per-frame eye gaze samples into vergence estimates:
// the convergence point of both eyes, its distance from the cyclopean gaze
// origin, and a marker placed along the cyclopean gaze at that distance.
package tracker

import (
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/taigrr/vergence/pkg/gaze"
	"github.com/taigrr/vergence/pkg/math3d"
)

// DefaultInitialDistance is the marker distance, in meters, used before the
// first defined frame.
const DefaultInitialDistance = 1.5

// DefaultFPS is the sample rate assumed for spring smoothing when Config
// leaves it unset.
const DefaultFPS = 90

// Frame is one eye tracker sample. All rays must share a coordinate frame.
type Frame struct {
	// Time is the sample time in seconds.
	Time     float64
	Left     gaze.Ray
	Right    gaze.Ray
	Combined gaze.Ray
}

// Estimate is the result of processing one Frame.
type Estimate struct {
	Frame        Frame
	Intersection gaze.Intersection
	Closest      gaze.ClosestPoints

	// IntersectionDistance and ClosestDistance are the distances from the
	// combined gaze origin to each estimate. When an estimate is undefined
	// the last defined distance is repeated.
	IntersectionDistance float64
	ClosestDistance      float64

	// Distance is the marker distance after smoothing.
	Distance float64
	// Marker is the point Distance meters along the combined gaze.
	Marker math3d.Vec3
	// Held is set when the closest-point estimate was undefined and
	// ClosestDistance was carried over from an earlier frame.
	Held bool
}

// Config configures a Tracker. The zero value tracks without smoothing.
type Config struct {
	Solver gaze.Solver

	// InitialDistance seeds the vergence distance. Zero selects
	// DefaultInitialDistance.
	InitialDistance float64

	// SmoothingFrequency is the angular frequency of the spring that eases
	// the marker distance toward each new measurement. Zero disables
	// smoothing.
	SmoothingFrequency float64
	// Damping is the spring damping ratio. Zero selects 1 (critically
	// damped).
	Damping float64
	// FPS is the sample rate. Zero selects DefaultFPS.
	FPS int
}

// Tracker holds the state carried between frames of one gaze stream. It is
// not safe for concurrent use; use one Tracker per stream.
type Tracker struct {
	cfg Config

	spring   harmonica.Spring
	smoothed float64
	velocity float64

	intersectionDist float64
	closestDist      float64
}

// New creates a Tracker.
func New(cfg Config) *Tracker {
	if cfg.InitialDistance <= 0 {
		cfg.InitialDistance = DefaultInitialDistance
	}
	if cfg.Damping <= 0 {
		cfg.Damping = 1
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}

	t := &Tracker{cfg: cfg}
	if cfg.SmoothingFrequency > 0 {
		t.spring = harmonica.NewSpring(harmonica.FPS(cfg.FPS), cfg.SmoothingFrequency, cfg.Damping)
	}
	t.Reset()
	return t
}

// Config returns the configuration in effect, defaults applied.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Reset forgets all carried state.
func (t *Tracker) Reset() {
	t.intersectionDist = t.cfg.InitialDistance
	t.closestDist = t.cfg.InitialDistance
	t.smoothed = t.cfg.InitialDistance
	t.velocity = 0
}

// Update processes one frame.
func (t *Tracker) Update(f Frame) Estimate {
	est := Estimate{
		Frame:        f,
		Intersection: t.cfg.Solver.Intersect(f.Left, f.Right),
		Closest:      t.cfg.Solver.Closest(f.Left, f.Right),
	}
	ref := f.Combined.Origin

	if d, ok := VergenceDistance(ref, est.Intersection.Point); ok {
		t.intersectionDist = d
	}
	if d, ok := VergenceDistance(ref, est.Closest.Point); ok {
		t.closestDist = d
	} else {
		est.Held = true
	}
	est.IntersectionDistance = t.intersectionDist
	est.ClosestDistance = t.closestDist

	if t.cfg.SmoothingFrequency > 0 {
		t.smoothed, t.velocity = t.spring.Update(t.smoothed, t.velocity, t.closestDist)
	} else {
		t.smoothed = t.closestDist
	}
	est.Distance = t.smoothed
	est.Marker = MarkerPosition(f.Combined, est.Distance)

	return est
}

// VergenceDistance returns the distance from reference to point, and false
// when either is not a finite point.
func VergenceDistance(reference, point math3d.Vec3) (float64, bool) {
	if !reference.IsFinite() || !point.IsFinite() {
		return math.NaN(), false
	}
	return reference.Distance(point), true
}

// MarkerPosition places a marker distance meters along the combined gaze.
// It returns a NaN point when the gaze ray is invalid.
func MarkerPosition(combined gaze.Ray, distance float64) math3d.Vec3 {
	if !combined.Valid() || math.IsNaN(distance) {
		return math3d.NaN3()
	}
	return combined.At(distance)
}
