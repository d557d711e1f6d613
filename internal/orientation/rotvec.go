// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

// FromQuaternion converts a rotation quaternion to a device->world matrix.
// q is normalized first; a zero quaternion yields the identity.
func FromQuaternion(q quat.Number) rotation.Matrix {
	n := quat.Abs(q)
	if n == 0 {
		return rotation.Identity()
	}
	q = quat.Scale(1/n, q)
	qc := quat.Conj(q)

	var r [9]float32
	for c, e := range []quat.Number{{Imag: 1}, {Jmag: 1}, {Kmag: 1}} {
		v := quat.Mul(quat.Mul(q, e), qc)
		r[0*3+c] = float32(v.Imag)
		r[1*3+c] = float32(v.Jmag)
		r[2*3+c] = float32(v.Kmag)
	}
	return rotation.FromMat3(r)
}

// FromRotationVector converts a platform rotation vector (x, y, z) = axis·sin(θ/2)
// to a matrix. The scalar part is derived when the platform omits it.
func FromRotationVector(x, y, z float64) rotation.Matrix {
	w := 1 - x*x - y*y - z*z
	if w > 0 {
		w = math.Sqrt(w)
	} else {
		w = 0
	}
	return FromQuaternion(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z})
}
