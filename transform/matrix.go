// Package transform provides the affine transforms used to map coordinates
// between a rendered viewport and an index domain.
package transform

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeSingularMatrix is the error type returned when inverting a
	// matrix with a zero determinant.
	ErrTypeSingularMatrix = "singular_matrix"
)

// Matrix3x3 is a row-major 3x3 matrix. Mrc is the element at row r and column
// c.
type Matrix3x3 struct {
	M00, M01, M02 float64
	M10, M11, M12 float64
	M20, M21, M22 float64
}

func Identity() Matrix3x3 {
	return Matrix3x3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

func YFlipping() Matrix3x3 {
	return Matrix3x3{
		1, 0, 0,
		0, -1, 0,
		0, 0, 1,
	}
}

func Scaling(v Vector2) Matrix3x3 {
	return Matrix3x3{
		v.X, 0, 0,
		0, v.Y, 0,
		0, 0, 1,
	}
}

func Translation(v Vector2) Matrix3x3 {
	return Matrix3x3{
		1, 0, v.X,
		0, 1, v.Y,
		0, 0, 1,
	}
}

// Multiply returns m x o. Applying the result to a vector applies o first,
// then m.
func (m Matrix3x3) Multiply(o Matrix3x3) Matrix3x3 {
	return Matrix3x3{
		M00: m.M00*o.M00 + m.M01*o.M10 + m.M02*o.M20,
		M01: m.M00*o.M01 + m.M01*o.M11 + m.M02*o.M21,
		M02: m.M00*o.M02 + m.M01*o.M12 + m.M02*o.M22,

		M10: m.M10*o.M00 + m.M11*o.M10 + m.M12*o.M20,
		M11: m.M10*o.M01 + m.M11*o.M11 + m.M12*o.M21,
		M12: m.M10*o.M02 + m.M11*o.M12 + m.M12*o.M22,

		M20: m.M20*o.M00 + m.M21*o.M10 + m.M22*o.M20,
		M21: m.M20*o.M01 + m.M21*o.M11 + m.M22*o.M21,
		M22: m.M20*o.M02 + m.M21*o.M12 + m.M22*o.M22,
	}
}

func (m Matrix3x3) Determinant() float64 {
	return m.M00*(m.M11*m.M22-m.M12*m.M21) -
		m.M01*(m.M10*m.M22-m.M12*m.M20) +
		m.M02*(m.M10*m.M21-m.M11*m.M20)
}

// Inverse returns the inverse of m, or an error when m is singular.
func (m Matrix3x3) Inverse() (Matrix3x3, error) {
	det := m.Determinant()
	if det == 0 {
		return Matrix3x3{}, errors.New("matrix is not invertible").
			WithType(ErrTypeSingularMatrix).
			WithTag("matrix", m)
	}

	return Matrix3x3{
		M00: (m.M11*m.M22 - m.M12*m.M21) / det,
		M01: (m.M02*m.M21 - m.M01*m.M22) / det,
		M02: (m.M01*m.M12 - m.M02*m.M11) / det,

		M10: (m.M12*m.M20 - m.M10*m.M22) / det,
		M11: (m.M00*m.M22 - m.M02*m.M20) / det,
		M12: (m.M02*m.M10 - m.M00*m.M12) / det,

		M20: (m.M10*m.M21 - m.M11*m.M20) / det,
		M21: (m.M01*m.M20 - m.M00*m.M21) / det,
		M22: (m.M00*m.M11 - m.M01*m.M10) / det,
	}, nil
}

// Apply transforms the 2D point v with m.
func (m Matrix3x3) Apply(v Vector2) Vector2 {
	return v.To3D().Transform(m).To2D()
}
