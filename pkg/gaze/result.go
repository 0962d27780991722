package gaze

import (
	"math"

	"github.com/taigrr/vergence/pkg/math3d"
)

// Intersection is the least-squares convergence point of two rays.
// When Err is non-nil the result is undefined and every field is NaN.
type Intersection struct {
	Point math3d.Vec3
	// T1 and T2 are the signed distances along the first and second
	// normalized ray directions.
	T1, T2 float64
	Err    error
}

// Defined reports whether the intersection holds a usable point.
func (r Intersection) Defined() bool {
	return r.Err == nil
}

func undefinedIntersection(err error) Intersection {
	return Intersection{
		Point: math3d.NaN3(),
		T1:    math.NaN(),
		T2:    math.NaN(),
		Err:   err,
	}
}

// ClosestPoints is the closest pair of points between two lines and the
// midpoint between them. When Err is non-nil the result is undefined and
// every field is NaN.
type ClosestPoints struct {
	// Point is the midpoint of OnFirst and OnSecond.
	Point math3d.Vec3
	// OnFirst is the point of the first line nearest to the second line.
	OnFirst math3d.Vec3
	// OnSecond is the point of the second line nearest to the first line.
	OnSecond math3d.Vec3
	// T and S are the signed distances of OnFirst and OnSecond along the
	// normalized directions.
	T, S float64
	Err  error
}

// Defined reports whether the closest points are usable.
func (r ClosestPoints) Defined() bool {
	return r.Err == nil
}

// Gap returns the minimum distance between the two lines, or NaN when
// undefined.
func (r ClosestPoints) Gap() float64 {
	if r.Err != nil {
		return math.NaN()
	}
	return r.OnFirst.Distance(r.OnSecond)
}

func undefinedClosest(err error) ClosestPoints {
	return ClosestPoints{
		Point:    math3d.NaN3(),
		OnFirst:  math3d.NaN3(),
		OnSecond: math3d.NaN3(),
		T:        math.NaN(),
		S:        math.NaN(),
		Err:      err,
	}
}
