package math3d

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimension is returned when matrix shapes do not agree.
	ErrDimension = errors.New("math3d: dimension mismatch")
	// ErrSingular is returned when a system has no unique solution.
	ErrSingular = errors.New("math3d: singular matrix")
)

// MatN is a small dense matrix stored in row-major order. It is meant for
// the handful of fixed-size systems the estimator builds, not as a general
// linear algebra package.
type MatN struct {
	Rows, Cols int
	Data       []float64
}

// NewMatN creates a zero matrix with the given shape.
func NewMatN(rows, cols int) *MatN {
	return &MatN{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// MatNFromRows builds a matrix from row slices. All rows must have the same
// length.
func MatNFromRows(rows ...[]float64) (*MatN, error) {
	if len(rows) == 0 {
		return NewMatN(0, 0), nil
	}
	m := NewMatN(len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.Cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(r), m.Cols, ErrDimension)
		}
		copy(m.Data[i*m.Cols:], r)
	}
	return m, nil
}

// At returns the element at (row, col).
func (m *MatN) At(row, col int) float64 {
	return m.Data[row*m.Cols+col]
}

// Set sets the element at (row, col).
func (m *MatN) Set(row, col int, v float64) {
	m.Data[row*m.Cols+col] = v
}

// T returns the transpose.
func (m *MatN) T() *MatN {
	t := NewMatN(m.Cols, m.Rows)
	for r := range m.Rows {
		for c := range m.Cols {
			t.Set(c, r, m.At(r, c))
		}
	}
	return t
}

// Mul returns the product a * b.
//
//nolint:st1016 // a*b naming convention is clearer for matrix multiplication
func (a *MatN) Mul(b *MatN) (*MatN, error) {
	if a.Cols != b.Rows {
		return nil, fmt.Errorf("mul %dx%d by %dx%d: %w", a.Rows, a.Cols, b.Rows, b.Cols, ErrDimension)
	}
	m := NewMatN(a.Rows, b.Cols)
	for r := range a.Rows {
		for c := range b.Cols {
			var sum float64
			for k := range a.Cols {
				sum += a.Data[r*a.Cols+k] * b.Data[k*b.Cols+c]
			}
			m.Data[r*m.Cols+c] = sum
		}
	}
	return m, nil
}

// MulVec returns the matrix-vector product m * v.
func (m *MatN) MulVec(v []float64) ([]float64, error) {
	if len(v) != m.Cols {
		return nil, fmt.Errorf("mulvec %dx%d by %d: %w", m.Rows, m.Cols, len(v), ErrDimension)
	}
	out := make([]float64, m.Rows)
	for r := range m.Rows {
		var sum float64
		for c := range m.Cols {
			sum += m.Data[r*m.Cols+c] * v[c]
		}
		out[r] = sum
	}
	return out, nil
}

// Solve solves the square system m * x = b by Gaussian elimination with
// partial pivoting. A pivot whose magnitude is zero or below tol makes the
// system singular. m and b are left untouched.
func (m *MatN) Solve(b []float64, tol float64) ([]float64, error) {
	n := m.Rows
	if m.Cols != n {
		return nil, fmt.Errorf("solve %dx%d: not square: %w", m.Rows, m.Cols, ErrDimension)
	}
	if len(b) != n {
		return nil, fmt.Errorf("solve %dx%d with rhs %d: %w", m.Rows, m.Cols, len(b), ErrDimension)
	}

	// Augmented working copy [A | b].
	w := n + 1
	aug := make([]float64, n*w)
	for r := range n {
		copy(aug[r*w:r*w+n], m.Data[r*n:(r+1)*n])
		aug[r*w+n] = b[r]
	}

	for k := range n {
		p := k
		best := math.Abs(aug[k*w+k])
		for r := k + 1; r < n; r++ {
			if v := math.Abs(aug[r*w+k]); v > best {
				best, p = v, r
			}
		}
		if best == 0 || best < tol || math.IsNaN(best) {
			return nil, fmt.Errorf("pivot %d is %g: %w", k, best, ErrSingular)
		}
		if p != k {
			for c := k; c < w; c++ {
				aug[k*w+c], aug[p*w+c] = aug[p*w+c], aug[k*w+c]
			}
		}

		pivot := aug[k*w+k]
		for r := k + 1; r < n; r++ {
			f := aug[r*w+k] / pivot
			if f == 0 {
				continue
			}
			for c := k; c < w; c++ {
				aug[r*w+c] -= f * aug[k*w+c]
			}
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := aug[r*w+n]
		for c := r + 1; c < n; c++ {
			sum -= aug[r*w+c] * x[c]
		}
		x[r] = sum / aug[r*w+r]
	}
	return x, nil
}

// LeastSquares returns the x minimizing |m*x - b|² by solving the normal
// equations (mᵗm) x = mᵗb. tol is the pivot tolerance passed to Solve.
func (m *MatN) LeastSquares(b []float64, tol float64) ([]float64, error) {
	if len(b) != m.Rows {
		return nil, fmt.Errorf("least squares %dx%d with rhs %d: %w", m.Rows, m.Cols, len(b), ErrDimension)
	}
	mt := m.T()
	ata, err := mt.Mul(m)
	if err != nil {
		return nil, err
	}
	atb, err := mt.MulVec(b)
	if err != nil {
		return nil, err
	}
	return ata.Solve(atb, tol)
}
