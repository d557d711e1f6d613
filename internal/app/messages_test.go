// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/pano_viewer/internal/fusion"
	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

func TestCameraMessageIsColumnMajor(t *testing.T) {
	cam := fusion.Compose(orientation.Upright, 25)
	msg := NewCameraMessage(cam, time.UnixMilli(42))

	assert.Equal(t, LayoutColumnMajor, msg.Layout)
	assert.Equal(t, int64(42), msg.TimeMS)
	assert.InDelta(t, 25, msg.ViewHeading, 1e-4)

	// Element (row 0, col 2) sits at index 8 in column-major order.
	assert.Equal(t, cam.At(0, 2), msg.Matrix[8])
	assert.Equal(t, mgl32.Mat4(msg.Matrix).At(0, 2), cam.At(0, 2))

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	var back CameraMessage
	require.NoError(t, json.Unmarshal(raw, &back))
	m, err := back.Rotation()
	require.NoError(t, err)
	assert.Equal(t, cam, m)

	back.Layout = "row_major"
	_, err = back.Rotation()
	assert.Error(t, err)
}

func TestParseLifecycle(t *testing.T) {
	for in, want := range map[string]string{
		"pause":              LifecyclePause,
		" RESUME\n":          LifecycleResume,
		`"pause"`:            LifecyclePause,
		`{"state":"resume"}`: LifecycleResume,
	} {
		got, err := ParseLifecycle([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseLifecycle([]byte("stop"))
	assert.Error(t, err)
	_, err = ParseLifecycle([]byte(`{"state":`))
	assert.Error(t, err)
}

func TestParseImageRequest(t *testing.T) {
	p, err := ParseImageRequest([]byte("/srv/pano/alps.jpg\n"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/pano/alps.jpg", p)

	p, err = ParseImageRequest([]byte(`{"path":"beach.webp"}`))
	require.NoError(t, err)
	assert.Equal(t, "beach.webp", p)

	_, err = ParseImageRequest([]byte(`{"path":""}`))
	assert.Error(t, err)
	_, err = ParseImageRequest(nil)
	assert.Error(t, err)
}

func TestDecodeTouchFillsDefaults(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ev, err := DecodeTouch([]byte(`{"action":"move","x":3,"y":4}`), func() time.Time { return now })
	require.NoError(t, err)
	assert.Equal(t, gesture.ActionMove, ev.Action)
	assert.Equal(t, 1, ev.Pointers)
	assert.Equal(t, now, ev.Time)

	_, err = DecodeTouch([]byte(`{"action":"wiggle"}`), time.Now)
	assert.Error(t, err)
}

func TestCameraRoundTripKeepsOrthonormal(t *testing.T) {
	cam := fusion.Compose(orientation.MatrixFromPose(orientation.Pose{Roll: 12, Pitch: 70, Yaw: 200}), -33)
	m, err := NewCameraMessage(cam, time.Now()).Rotation()
	require.NoError(t, err)
	assert.True(t, m.IsOrthonormal(1e-5))
	assert.True(t, m.ApproxEqual(cam, 0))
	assert.NotEqual(t, rotation.Identity(), m)
}
