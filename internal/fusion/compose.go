// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"github.com/chewxy/math32"

	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

// Fixed corrections between the sensor world (X east, Y north, Z up) and the
// renderer's sphere (Y up, panorama forward on +Z, camera looking down -Z).
var (
	// axisCorrection turns the sphere's +Z forward onto the camera's -Z.
	axisCorrection = rotation.Rotate(rotation.Y, 180)
	// pitchCorrection re-references Y-up onto the sensor's Z-up: -Z -> north.
	pitchCorrection = rotation.Rotate(rotation.X, 90)

	baseCorrection = rotation.Mul(pitchCorrection, axisCorrection)
)

// Compose builds the camera rotation for raw (device->world) and the total
// yaw in degrees:
//
//	camera = rawᵀ · Rz(yaw) · Rx(90) · Ry(180)
//
// rawᵀ takes world into device coordinates, and the device frame is the
// camera frame (x right, y up, looking down -z). Positive yaw turns the
// sphere counter-clockwise seen from above.
func Compose(raw rotation.Matrix, yawDeg float32) rotation.Matrix {
	return rotation.Chain(raw.Transpose(), rotation.Rotate(rotation.Z, yawDeg), baseCorrection)
}

// Heading returns the compass heading of the device in degrees, clockwise
// from north in (-180, 180]. It is the horizontal direction of the viewing
// axis, or of the top edge when the device lies within eps of flat.
func Heading(raw rotation.Matrix, eps float32) float32 {
	// World image of device -Z is minus column 2.
	fx, fy := -raw.At(0, 2), -raw.At(1, 2)
	if math32.Hypot(fx, fy) < eps {
		fx, fy = raw.At(0, 1), raw.At(1, 1)
		// Face down the screen looks along the bottom edge.
		if raw.At(2, 2) < 0 {
			fx, fy = -fx, -fy
		}
	}
	return math32.Atan2(fx, fy) * 180 / math32.Pi
}

// NormalizeDegrees wraps deg into (-180, 180].
func NormalizeDegrees(deg float32) float32 {
	d := math32.Mod(deg, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// ViewHeading is the panorama longitude at the centre of the screen for a
// composed camera matrix, degrees clockwise from the panorama's forward
// direction.
func ViewHeading(camera rotation.Matrix) float32 {
	// Camera -Z in sphere coordinates is minus row 2.
	fx, fz := -camera.At(2, 0), -camera.At(2, 2)
	return math32.Atan2(-fx, fz) * 180 / math32.Pi
}

// ViewPitch is the elevation of the screen centre above the panorama's
// horizon, degrees.
func ViewPitch(camera rotation.Matrix) float32 {
	fy := -camera.At(2, 1)
	if fy > 1 {
		fy = 1
	} else if fy < -1 {
		fy = -1
	}
	return math32.Asin(fy) * 180 / math32.Pi
}
