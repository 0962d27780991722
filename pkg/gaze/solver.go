package gaze

import (
	"errors"
	"math"

	"github.com/taigrr/vergence/pkg/math3d"
)

// DefaultEpsilon is the degeneracy threshold used when a Solver does not set
// one. It bounds |(d1·d2)² - (d1·d1)(d2·d2)| for unit directions, which is
// sin² of the angle between the rays.
const DefaultEpsilon = 1e-10

// Solver holds the configuration of the ray-pair estimators. The zero value
// is ready to use. A Solver has no mutable state and may be shared between
// goroutines.
type Solver struct {
	// Epsilon is the degeneracy threshold. Zero or negative selects
	// DefaultEpsilon.
	Epsilon float64
}

func (s Solver) epsilon() float64 {
	if s.Epsilon > 0 {
		return s.Epsilon
	}
	return DefaultEpsilon
}

// Intersect estimates the convergence point of r1 and r2 with the default
// Solver.
func Intersect(r1, r2 Ray) Intersection {
	return Solver{}.Intersect(r1, r2)
}

// Closest returns the closest points of the lines through r1 and r2 with the
// default Solver.
func Closest(r1, r2 Ray) ClosestPoints {
	return Solver{}.Closest(r1, r2)
}

// Intersect models the convergence point as the least-squares solution of
//
//	x - t1·d1 = o1
//	x - t2·d2 = o2
//
// in the unknowns (x, y, z, t1, t2), with d1 and d2 normalized. The system is
// solved through its normal equations (AᵗA) X = Aᵗb.
func (s Solver) Intersect(r1, r2 Ray) Intersection {
	n1, ok1 := r1.normalized()
	n2, ok2 := r2.normalized()
	if !ok1 || !ok2 {
		return undefinedIntersection(ErrInvalidRay)
	}
	d1, d2 := n1.Direction, n2.Direction
	o1, o2 := n1.Origin, n2.Origin

	a := &math3d.MatN{Rows: 6, Cols: 5, Data: []float64{
		1, 0, 0, -d1.X, 0,
		0, 1, 0, -d1.Y, 0,
		0, 0, 1, -d1.Z, 0,
		1, 0, 0, 0, -d2.X,
		0, 1, 0, 0, -d2.Y,
		0, 0, 1, 0, -d2.Z,
	}}
	b := []float64{o1.X, o1.Y, o1.Z, o2.X, o2.Y, o2.Z}

	// For unit directions the last pivot of AᵗA is (1 - (d1·d2)²)/2, so
	// halving epsilon makes both estimators switch to undefined at the same
	// angle.
	x, err := a.LeastSquares(b, s.epsilon()/2)
	if err != nil {
		if errors.Is(err, math3d.ErrSingular) {
			return undefinedIntersection(ErrSingularSystem)
		}
		return undefinedIntersection(err)
	}

	p := math3d.V3(x[0], x[1], x[2])
	if !p.IsFinite() || math.IsNaN(x[3]) || math.IsNaN(x[4]) {
		return undefinedIntersection(ErrSingularSystem)
	}
	return Intersection{Point: p, T1: x[3], T2: x[4]}
}

// Closest computes the closed-form closest pair of points between the lines
// through r1 and r2 and returns their midpoint. Lines whose determinant
// (d1·d2)² - (d1·d1)(d2·d2) is below the solver epsilon in magnitude are
// reported as degenerate.
func (s Solver) Closest(r1, r2 Ray) ClosestPoints {
	n1, ok1 := r1.normalized()
	n2, ok2 := r2.normalized()
	if !ok1 || !ok2 {
		return undefinedClosest(ErrInvalidRay)
	}
	d1, d2 := n1.Direction, n2.Direction
	o1, o2 := n1.Origin, n2.Origin

	d11 := d1.Dot(d1)
	d22 := d2.Dot(d2)
	d12 := d1.Dot(d2)

	det := d12*d12 - d11*d22
	if math.Abs(det) < s.epsilon() {
		return undefinedClosest(ErrDegenerateLines)
	}

	e := o1.Sub(o2)
	d1e := d1.Dot(e)
	d2e := d2.Dot(e)

	t := (d22*d1e - d2e*d12) / det
	u := (d12*d1e - d2e*d11) / det

	p1 := o1.Add(d1.Scale(t))
	p2 := o2.Add(d2.Scale(u))

	return ClosestPoints{
		Point:    p1.Midpoint(p2),
		OnFirst:  p1,
		OnSecond: p2,
		T:        t,
		S:        u,
	}
}

// Determinant returns (d1·d2)² - (d1·d1)(d2·d2) for the normalized
// directions of r1 and r2, the quantity Closest compares against epsilon.
// It returns NaN for invalid rays.
func Determinant(r1, r2 Ray) float64 {
	n1, ok1 := r1.normalized()
	n2, ok2 := r2.normalized()
	if !ok1 || !ok2 {
		return math.NaN()
	}
	d12 := n1.Direction.Dot(n2.Direction)
	return d12*d12 - n1.Direction.LenSq()*n2.Direction.LenSq()
}
