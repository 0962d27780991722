// Package gaze estimates where two eye gaze rays converge.
//
// Two estimators are provided. Intersect treats the rays as an
// overdetermined linear system and returns its least-squares solution.
// Closest returns the midpoint of the closest pair of points on the two
// lines. Both report an undefined result through an error field instead of
// failing, since momentarily degenerate input (a blink, a lost eye) is
// routine at tracking rates.
package gaze

import (
	"errors"

	"github.com/taigrr/vergence/pkg/math3d"
)

var (
	// ErrInvalidRay marks a ray with a zero-length or non-finite direction
	// or a non-finite origin.
	ErrInvalidRay = errors.New("gaze: invalid ray")
	// ErrSingularSystem marks an intersection whose normal equations have no
	// unique solution.
	ErrSingularSystem = errors.New("gaze: singular intersection system")
	// ErrDegenerateLines marks parallel or colinear rays for which no unique
	// closest pair exists.
	ErrDegenerateLines = errors.New("gaze: parallel or colinear rays")
)

// Ray is a half-line starting at Origin and pointing along Direction.
// Direction need not be normalized.
type Ray struct {
	Origin    math3d.Vec3
	Direction math3d.Vec3
}

// NewRay creates a ray.
func NewRay(origin, direction math3d.Vec3) Ray {
	return Ray{Origin: origin, Direction: direction}
}

// At returns the point at parametric distance t along the normalized
// direction.
func (r Ray) At(t float64) math3d.Vec3 {
	return r.Origin.Add(r.Direction.Normalize().Scale(t))
}

// Valid reports whether the ray can take part in a computation.
func (r Ray) Valid() bool {
	return r.Origin.IsFinite() && r.Direction.IsFinite() && r.Direction.LenSq() > 0
}

// normalized returns the ray with a unit direction, or false if the ray is
// invalid.
func (r Ray) normalized() (Ray, bool) {
	if !r.Valid() {
		return Ray{}, false
	}
	d := r.Direction.Normalize()
	if !d.IsFinite() || d.LenSq() == 0 {
		return Ray{}, false
	}
	return Ray{Origin: r.Origin, Direction: d}, true
}
