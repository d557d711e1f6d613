// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source: an upright device that
// sways gently and turns slowly to the right.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Sample, error) {
	t := m.now()
	elapsed := t.Sub(m.start).Seconds()

	pose := Pose{
		Roll:  5 * math.Sin(elapsed),
		Pitch: 90 + 10*math.Cos(elapsed*0.7),
		Yaw:   math.Mod(elapsed*12, 360),
	}
	return Sample{Matrix: MatrixFromPose(pose), Time: t}, nil
}
