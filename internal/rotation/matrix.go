// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rotation provides the 4x4 homogeneous rotation matrices used by the
// fusion engine.
//
// Layout is fixed for the whole module: a Matrix is stored ROW-MAJOR, element
// (row r, column c) lives at index r*4+c, and matrices act on column vectors
// (v' = M·v). Renderers that expect OpenGL column-major data must go through
// ColumnMajor; nothing else in the module transposes implicitly.
package rotation

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Matrix is a 4x4 row-major transform.
type Matrix [16]float32

// Axis selects one of the three coordinate axes.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return "unknown"
	}
}

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Rotate returns a right-handed rotation of deg degrees about axis.
// An unknown axis yields the identity.
func Rotate(axis Axis, deg float32) Matrix {
	rad := deg * math32.Pi / 180
	c, s := math32.Cos(rad), math32.Sin(rad)

	switch axis {
	case X:
		return Matrix{
			1, 0, 0, 0,
			0, c, -s, 0,
			0, s, c, 0,
			0, 0, 0, 1,
		}
	case Y:
		return Matrix{
			c, 0, s, 0,
			0, 1, 0, 0,
			-s, 0, c, 0,
			0, 0, 0, 1,
		}
	case Z:
		return Matrix{
			c, -s, 0, 0,
			s, c, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}
	}
	return Identity()
}

// Mul returns a × b.
func Mul(a, b Matrix) Matrix {
	var m Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// Chain multiplies left to right: Chain(a, b, c) == a·b·c.
func Chain(ms ...Matrix) Matrix {
	out := Identity()
	for _, m := range ms {
		out = Mul(out, m)
	}
	return out
}

// Transpose returns mᵀ. For a rotation this is the inverse.
func (m Matrix) Transpose() Matrix {
	var t Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			t[c*4+r] = m[r*4+c]
		}
	}
	return t
}

// At returns element (r, c).
func (m Matrix) At(r, c int) float32 {
	return m[r*4+c]
}

// Row returns the first three components of row r.
func (m Matrix) Row(r int) [3]float32 {
	return [3]float32{m[r*4], m[r*4+1], m[r*4+2]}
}

// Col returns the first three components of column c.
func (m Matrix) Col(c int) [3]float32 {
	return [3]float32{m[c], m[4+c], m[8+c]}
}

// Apply transforms the direction v (w=0).
func (m Matrix) Apply(v [3]float32) [3]float32 {
	return [3]float32{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2],
	}
}

// FromMat3 embeds a row-major 3x3 matrix into a homogeneous 4x4 one.
func FromMat3(r [9]float32) Matrix {
	return Matrix{
		r[0], r[1], r[2], 0,
		r[3], r[4], r[5], 0,
		r[6], r[7], r[8], 0,
		0, 0, 0, 1,
	}
}

// IsOrthonormal reports whether the upper 3x3 block has unit, mutually
// orthogonal rows and the homogeneous row/column are untouched.
func (m Matrix) IsOrthonormal(tol float32) bool {
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			ri, rj := m.Row(i), m.Row(j)
			dot := ri[0]*rj[0] + ri[1]*rj[1] + ri[2]*rj[2]
			want := float32(0)
			if i == j {
				want = 1
			}
			if math32.Abs(dot-want) > tol {
				return false
			}
		}
	}
	for i := 0; i < 3; i++ {
		if math32.Abs(m[i*4+3]) > tol || math32.Abs(m[12+i]) > tol {
			return false
		}
	}
	return math32.Abs(m[15]-1) <= tol
}

// ApproxEqual compares element-wise within tol.
func (m Matrix) ApproxEqual(o Matrix, tol float32) bool {
	for i := range m {
		if math32.Abs(m[i]-o[i]) > tol {
			return false
		}
	}
	return true
}

// ColumnMajor converts to the OpenGL layout used by mgl32.
func (m Matrix) ColumnMajor() mgl32.Mat4 {
	return mgl32.Mat4(m.Transpose())
}

// FromColumnMajor is the inverse of ColumnMajor.
func FromColumnMajor(cm mgl32.Mat4) Matrix {
	return Matrix(cm).Transpose()
}
