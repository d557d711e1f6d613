// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/relabs-tech/pano_viewer/internal/fusion"
	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

// LayoutColumnMajor tags matrices sent to renderers.
const LayoutColumnMajor = "column_major"

// CameraMessage is published on every matrix push.
type CameraMessage struct {
	Layout      string      `json:"layout"`
	Matrix      [16]float32 `json:"matrix"`
	ViewHeading float32     `json:"view_heading"`
	ViewPitch   float32     `json:"view_pitch"`
	TimeMS      int64       `json:"t_ms"`
}

// NewCameraMessage encodes m column-major for GL-style renderers.
func NewCameraMessage(m rotation.Matrix, t time.Time) CameraMessage {
	return CameraMessage{
		Layout:      LayoutColumnMajor,
		Matrix:      [16]float32(m.ColumnMajor()),
		ViewHeading: fusion.ViewHeading(m),
		ViewPitch:   fusion.ViewPitch(m),
		TimeMS:      t.UnixMilli(),
	}
}

// Rotation decodes the matrix back into the engine's row-major layout.
func (c CameraMessage) Rotation() (rotation.Matrix, error) {
	if c.Layout != LayoutColumnMajor {
		return rotation.Matrix{}, fmt.Errorf("unsupported matrix layout %q", c.Layout)
	}
	return rotation.FromColumnMajor(mgl32.Mat4(c.Matrix)), nil
}

// ZoomMessage sets the renderer zoom factor.
type ZoomMessage struct {
	Zoom float32 `json:"zoom"`
}

// FOVMessage reports the renderer's field of view in degrees.
type FOVMessage struct {
	FOV float32 `json:"fov"`
}

// ChromeMessage asks the host UI to show or hide its chrome.
type ChromeMessage struct {
	Visible bool  `json:"visible"`
	TimeMS  int64 `json:"t_ms"`
}

// ImageRequest asks the viewer to load a panorama from disk.
type ImageRequest struct {
	Path string `json:"path"`
}

// Lifecycle commands on the lifecycle topic.
const (
	LifecyclePause  = "pause"
	LifecycleResume = "resume"
)

// ParseLifecycle accepts either a bare command or {"state":"pause"}.
func ParseLifecycle(payload []byte) (string, error) {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "{") {
		var msg struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			return "", fmt.Errorf("lifecycle: %w", err)
		}
		s = msg.State
	}
	s = strings.Trim(strings.ToLower(s), `"`)
	switch s {
	case LifecyclePause, LifecycleResume:
		return s, nil
	}
	return "", fmt.Errorf("unknown lifecycle command %q", s)
}

// ParseImageRequest accepts either a bare path or an ImageRequest.
func ParseImageRequest(payload []byte) (string, error) {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "{") {
		var req ImageRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", fmt.Errorf("image request: %w", err)
		}
		s = req.Path
	}
	if s == "" {
		return "", fmt.Errorf("image request: empty path")
	}
	return s, nil
}

// DecodeTouch decodes a gesture.TouchEvent. A missing pointer count means one
// finger, a missing time means now.
func DecodeTouch(payload []byte, now func() time.Time) (gesture.TouchEvent, error) {
	var ev gesture.TouchEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("touch: %w", err)
	}
	if ev.Pointers <= 0 {
		ev.Pointers = 1
	}
	if ev.Time.IsZero() {
		ev.Time = now()
	}
	return ev, nil
}

// wsInbound is one message from a browser client.
type wsInbound struct {
	Type   string                     `json:"type"` // touch, sensor, fov
	Touch  *gesture.TouchEvent        `json:"touch,omitempty"`
	Sensor *orientation.SampleMessage `json:"sensor,omitempty"`
	FOV    float32                    `json:"fov,omitempty"`
}

// wsOutbound is pushed to browser clients.
type wsOutbound struct {
	Type   string         `json:"type"` // hello, camera, zoom, chrome
	ID     string         `json:"id,omitempty"`
	Camera *CameraMessage `json:"camera,omitempty"`
	Zoom   *ZoomMessage   `json:"zoom,omitempty"`
	Chrome *ChromeMessage `json:"chrome,omitempty"`
}
