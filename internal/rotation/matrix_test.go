// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rotation

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const tol = 1e-5

func upper3(m Matrix) *mat.Dense {
	data := make([]float64, 0, 9)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			data = append(data, float64(m.At(r, c)))
		}
	}
	return mat.NewDense(3, 3, data)
}

func TestRotateMatchesMathGL(t *testing.T) {
	for _, deg := range []float32{-170, -90, -30, 0, 15, 90, 180, 271} {
		rad := mgl32.DegToRad(deg)
		assert.True(t, Rotate(X, deg).ColumnMajor().ApproxEqualThreshold(mgl32.HomogRotate3DX(rad), tol), "x %v", deg)
		assert.True(t, Rotate(Y, deg).ColumnMajor().ApproxEqualThreshold(mgl32.HomogRotate3DY(rad), tol), "y %v", deg)
		assert.True(t, Rotate(Z, deg).ColumnMajor().ApproxEqualThreshold(mgl32.HomogRotate3DZ(rad), tol), "z %v", deg)
	}
}

func TestRotateRightHanded(t *testing.T) {
	// +90 about Z takes +X to +Y.
	v := Rotate(Z, 90).Apply([3]float32{1, 0, 0})
	assert.InDelta(t, 0, v[0], tol)
	assert.InDelta(t, 1, v[1], tol)

	// +90 about X takes +Y to +Z.
	v = Rotate(X, 90).Apply([3]float32{0, 1, 0})
	assert.InDelta(t, 1, v[2], tol)

	// +90 about Y takes +Z to +X.
	v = Rotate(Y, 90).Apply([3]float32{0, 0, 1})
	assert.InDelta(t, 1, v[0], tol)
}

func TestUnknownAxisIsIdentity(t *testing.T) {
	assert.Equal(t, Identity(), Rotate(Axis(7), 45))
	assert.Equal(t, "unknown", Axis(7).String())
}

func TestMulOrder(t *testing.T) {
	a := Rotate(X, 90)
	b := Rotate(Z, 90)
	// (a·b)·v applies b first.
	v := Mul(a, b).Apply([3]float32{1, 0, 0})
	assert.InDelta(t, 1, v[2], tol) // x -> y (b), y -> z (a)

	assert.Equal(t, Mul(Mul(a, b), a), Chain(a, b, a))
	assert.Equal(t, Identity(), Chain())
}

func TestTransposeInverts(t *testing.T) {
	m := Chain(Rotate(Z, 33), Rotate(X, -71), Rotate(Y, 12))
	assert.True(t, Mul(m, m.Transpose()).ApproxEqual(Identity(), tol))
	assert.Equal(t, m, m.Transpose().Transpose())
}

func TestComposedRotationsStayOrthonormal(t *testing.T) {
	m := Identity()
	for i := 0; i < 500; i++ {
		m = Chain(m, Rotate(Axis(i%3), float32(i)*7.3))
	}
	assert.True(t, m.IsOrthonormal(1e-3))

	q := upper3(m)
	var p mat.Dense
	p.Mul(q, q.T())
	id := mat.NewDiagDense(3, []float64{1, 1, 1})
	assert.True(t, mat.EqualApprox(&p, id, 1e-3))
}

func TestIsOrthonormalRejectsScaleAndTranslation(t *testing.T) {
	m := Identity()
	m[0] = 2
	assert.False(t, m.IsOrthonormal(tol))

	m = Identity()
	m[3] = 0.5
	assert.False(t, m.IsOrthonormal(tol))

	m = Identity()
	m[1] = 0.3
	assert.False(t, m.IsOrthonormal(tol))
}

func TestFromMat3AndAccessors(t *testing.T) {
	m := FromMat3([9]float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	assert.Equal(t, [3]float32{4, 5, 6}, m.Row(1))
	assert.Equal(t, [3]float32{3, 6, 9}, m.Col(2))
	assert.Equal(t, float32(8), m.At(2, 1))
	assert.Equal(t, float32(1), m[15])
}

func TestColumnMajorRoundTrip(t *testing.T) {
	m := Rotate(Y, 40)
	cm := m.ColumnMajor()
	// mgl32 stores column 0 first: element (0,2) of the row-major matrix
	// lands at index 2*4+0.
	require.InDelta(t, m.At(0, 2), cm[8], tol)
	assert.Equal(t, m, FromColumnMajor(cm))
}
