// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

// Pose is a human-readable attitude, degrees.
//
// It composes as R = Rz(-Yaw) · Rx(Pitch) · Ry(Roll), starting from a device
// lying flat with its top edge pointing north. Yaw is clockwise from north,
// Pitch 90 is an upright device.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Sample is one attitude reading: the device->world rotation matrix
// (world X east, Y north, Z up).
type Sample struct {
	Matrix rotation.Matrix
	Time   time.Time
}

// Source is anything that can provide attitude samples over time.
type Source interface {
	Next() (Sample, error)
}

// Upright is the attitude of a device held in portrait facing north. It is the
// fixed default when no sensor is present.
var Upright = rotation.Rotate(rotation.X, 90)

// MatrixFromPose builds the device->world matrix for p.
func MatrixFromPose(p Pose) rotation.Matrix {
	return rotation.Chain(
		rotation.Rotate(rotation.Z, float32(-p.Yaw)),
		rotation.Rotate(rotation.X, float32(p.Pitch)),
		rotation.Rotate(rotation.Y, float32(p.Roll)),
	)
}

// PoseFromMatrix decomposes m. Yaw is unreliable near Pitch ±90 (gimbal lock).
func PoseFromMatrix(m rotation.Matrix) Pose {
	s := clamp(m.At(2, 1), -1, 1)
	pitch := math32.Asin(s)
	roll := math32.Atan2(-m.At(2, 0), m.At(2, 2))
	yaw := math32.Atan2(m.At(0, 1), m.At(1, 1))
	return Pose{
		Roll:  float64(deg(roll)),
		Pitch: float64(deg(pitch)),
		Yaw:   float64(deg(yaw)),
	}
}

// PoseFromAccel estimates roll and pitch from a resting accelerometer
// reading (any unit). At rest the accelerometer measures world up in device
// coordinates, which is row 2 of the device->world matrix:
//
//	pitch = atan2(ay, sqrt(ax² + az²))
//	roll  = atan2(-ax, az)
//
// Yaw is left at 0; gravity carries no heading.
func PoseFromAccel(ax, ay, az float64) Pose {
	fx, fy, fz := float32(ax), float32(ay), float32(az)
	pitch := math32.Atan2(fy, math32.Sqrt(fx*fx+fz*fz))
	roll := math32.Atan2(-fx, fz)
	return Pose{Roll: float64(deg(roll)), Pitch: float64(deg(pitch))}
}

func deg(rad float32) float32 { return rad * 180 / math32.Pi }

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
