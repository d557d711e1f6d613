// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package horizon finds the on-screen direction that corresponds to turning
// the view horizontally, for a device held at any roll or tilt.
package horizon

import (
	"github.com/chewxy/math32"

	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

// Direction is a unit vector in screen coordinates (x right, y down).
type Direction struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Default is the direction for an upright device: pure horizontal.
var Default = Direction{X: 1, Y: 0}

// Dot projects the screen delta (dx, dy) onto d.
func (d Direction) Dot(dx, dy float32) float32 {
	return d.X*dx + d.Y*dy
}

// Rotated returns d rotated by deg degrees in screen space.
func (d Direction) Rotated(deg float32) Direction {
	rad := deg * math32.Pi / 180
	c, s := math32.Cos(rad), math32.Sin(rad)
	return Direction{X: d.X*c - d.Y*s, Y: d.X*s + d.Y*c}
}

// Project returns the horizon direction for the raw device matrix raw
// (device to world, see package rotation for layout). ok is false when the
// world up vector's projection onto the screen plane is shorter than eps,
// i.e. the device points straight up or down.
func Project(raw rotation.Matrix, eps float32) (Direction, bool) {
	// Row 2 of a device->world rotation is world up in device coordinates.
	ux, uy := raw.At(2, 0), raw.At(2, 1)
	l := math32.Hypot(ux, uy)
	if l < eps || l == 0 {
		return Direction{}, false
	}
	// Rotate up by -90° in the device plane (y up), then flip y for
	// screen coordinates: (uy, -ux) -> (uy, ux).
	return Direction{X: uy / l, Y: ux / l}, true
}
