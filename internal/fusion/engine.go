// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fusion combines device attitude, swipe gestures and swipe inertia
// into the camera rotation pushed to the renderer.
//
// An Engine is owned by exactly one goroutine (see Loop). None of its methods
// lock; collaborators running elsewhere must post into the Loop.
package fusion

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/horizon"
	"github.com/relabs-tech/pano_viewer/internal/inertia"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
	"github.com/relabs-tech/pano_viewer/internal/rotation"
	"github.com/relabs-tech/pano_viewer/internal/timeutil"
)

// ErrInvalidImage is returned by LoadImage for non-positive dimensions.
var ErrInvalidImage = errors.New("invalid image dimensions")

// Renderer is the 3D collaborator that draws the sphere and owns zoom.
type Renderer interface {
	SetRotationMatrix(m rotation.Matrix)
	SetZoomFactor(z float32)
	// FieldOfView is the current vertical field of view in degrees.
	FieldOfView() float32
	// HandleMultiTouch receives 2+ finger events for pinch-to-zoom.
	HandleMultiTouch(ev gesture.TouchEvent)
}

// ChromeToggler shows or hides the window chrome on a qualifying tap.
type ChromeToggler interface {
	ToggleChrome()
}

// SensorRegistration is the platform rotation sensor. Its presence is the
// capability flag: an Engine built without one runs touch-only.
type SensorRegistration interface {
	Register() error
	Unregister()
}

// Tuning groups every heuristic constant.
type Tuning struct {
	DefaultFOV     float32 // fov at which sensitivity is 1
	ZoomFactor     float32 // pushed once per image load
	BaseYawDeg     float32 // fixed yaw added to the offset
	NoSensorYawDeg float32 // baseline when no sensor is present
	HorizonEpsilon float32
	HeadingEpsilon float32
	Gesture        gesture.Config
	Inertia        inertia.Config
}

// DefaultTuning returns the stock constants.
func DefaultTuning() Tuning {
	return Tuning{
		DefaultFOV:     70,
		ZoomFactor:     0.7,
		HorizonEpsilon: 0.1,
		HeadingEpsilon: 0.1,
		Gesture:        gesture.DefaultConfig(),
		Inertia:        inertia.DefaultConfig(),
	}
}

// State is the camera state the engine owns.
type State struct {
	YawOffset   float32           `json:"yaw_offset"`
	Baseline    bool              `json:"baseline_captured"`
	Raw         rotation.Matrix   `json:"raw"`
	HaveSample  bool              `json:"have_sample"`
	Camera      rotation.Matrix   `json:"camera"`
	Horizon     horizon.Direction `json:"horizon"`
	HorizonOK   bool              `json:"horizon_ok"`
	ImageWidth  int               `json:"image_width"`
	ImageHeight int               `json:"image_height"`
}

// Engine is the orientation and gesture fusion engine.
type Engine struct {
	tuning   Tuning
	renderer Renderer
	chrome   ChromeToggler
	sensor   SensorRegistration
	clock    timeutil.Clock

	state    State
	gestures *gesture.Controller
	inertia  *inertia.Integrator

	attached    bool
	paused      bool
	imageLoaded bool
	pushes      int
}

// Option configures an Engine.
type Option func(*Engine)

// WithSensor enables sensor fusion through reg.
func WithSensor(reg SensorRegistration) Option {
	return func(e *Engine) { e.sensor = reg }
}

// WithClock drives the inertia ticker from c. Without a clock inertia must be
// stepped by hand with StepInertia.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithChrome sets the tap target.
func WithChrome(c ChromeToggler) Option {
	return func(e *Engine) { e.chrome = c }
}

// New creates an attached Engine pushing to r.
func New(t Tuning, r Renderer, opts ...Option) *Engine {
	e := &Engine{tuning: t, renderer: r, attached: true}
	for _, opt := range opts {
		opt(e)
	}

	e.inertia = inertia.New(t.Inertia, e.clock, e.addYaw)
	e.gestures = gesture.NewController(t.Gesture, engineHost{e}, e.inertia)

	e.state.Raw = orientation.Upright
	e.state.Horizon, e.state.HorizonOK = horizon.Project(e.state.Raw, t.HorizonEpsilon)
	e.state.Camera = e.compose()

	if e.sensor != nil {
		if err := e.sensor.Register(); err != nil {
			log.Printf("fusion: sensor register failed, continuing touch-only: %v", err)
			e.sensor = nil
		}
	}
	return e
}

// HasSensor reports whether sensor fusion is active.
func (e *Engine) HasSensor() bool { return e.sensor != nil }

// State returns a copy of the camera state.
func (e *Engine) State() State { return e.state }

// YawOffset is the user yaw beyond the raw sensor reading, degrees.
func (e *Engine) YawOffset() float32 { return e.state.YawOffset }

// Camera is the last composed camera matrix.
func (e *Engine) Camera() rotation.Matrix { return e.state.Camera }

// Phase reports the gesture state.
func (e *Engine) Phase() gesture.Phase { return e.gestures.Phase() }

// InertiaRunning reports whether the view is coasting.
func (e *Engine) InertiaRunning() bool { return e.inertia.Running() }

// Pushes counts matrices sent to the renderer.
func (e *Engine) Pushes() int { return e.pushes }

// Attached reports whether the engine still drives a renderer.
func (e *Engine) Attached() bool { return e.attached }

// LoadImage resets the yaw for a freshly decoded panorama of the given size.
func (e *Engine) LoadImage(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidImage, width, height)
	}
	if !e.attached {
		return nil
	}

	e.inertia.Stop()
	e.gestures.Reset()
	e.imageLoaded = true
	e.state.ImageWidth, e.state.ImageHeight = width, height
	e.state.YawOffset = 0
	e.state.Baseline = false

	if e.renderer != nil {
		e.renderer.SetZoomFactor(e.tuning.ZoomFactor)
	}

	if e.sensor == nil {
		e.state.YawOffset = e.tuning.NoSensorYawDeg
		e.state.Baseline = true
		e.push()
		return nil
	}
	if e.state.HaveSample {
		// Attitude is only captured on a fresh sample.
		e.push()
	}
	return nil
}

// HandleSensorSample fuses one raw device matrix. Samples are ignored while
// paused or detached.
func (e *Engine) HandleSensorSample(raw rotation.Matrix) {
	if !e.attached || e.paused || e.sensor == nil {
		return
	}

	e.state.Raw = raw
	e.state.HaveSample = true
	e.state.Horizon, e.state.HorizonOK = horizon.Project(raw, e.tuning.HorizonEpsilon)

	if e.imageLoaded && !e.state.Baseline {
		h := Heading(raw, e.tuning.HeadingEpsilon)
		e.state.YawOffset = -h
		e.state.Baseline = true
		log.Printf("fusion: baseline captured at heading %.1f°", h)
	}
	e.push()
}

// HandleTouchEvent runs one touch event through the gesture controller.
func (e *Engine) HandleTouchEvent(ev gesture.TouchEvent) {
	if !e.attached {
		return
	}
	e.gestures.Handle(ev)
}

// Pause unregisters the sensor and stops any coast.
func (e *Engine) Pause() {
	if e.paused {
		return
	}
	e.paused = true
	e.inertia.Stop()
	if e.sensor != nil {
		e.sensor.Unregister()
	}
}

// Resume registers the sensor again. The baseline is kept unless an image was
// loaded in the meantime.
func (e *Engine) Resume() error {
	if !e.paused {
		return nil
	}
	e.paused = false
	if e.sensor != nil {
		if err := e.sensor.Register(); err != nil {
			return fmt.Errorf("resume sensor: %w", err)
		}
	}
	return nil
}

// Paused reports the lifecycle state.
func (e *Engine) Paused() bool { return e.paused }

// Detach stops all output. Late callbacks become no-ops.
func (e *Engine) Detach() {
	if !e.attached {
		return
	}
	e.attached = false
	e.inertia.Stop()
	if e.sensor != nil && !e.paused {
		e.sensor.Unregister()
	}
}

// InertiaC is the inertia tick channel, nil when idle.
func (e *Engine) InertiaC() <-chan time.Time { return e.inertia.C() }

// StepInertia advances the coast one tick.
func (e *Engine) StepInertia() bool {
	if !e.attached {
		e.inertia.Stop()
		return false
	}
	return e.inertia.Step()
}

func (e *Engine) addYaw(delta float32) {
	e.state.YawOffset += delta
	e.push()
}

func (e *Engine) sensitivity() float32 {
	if e.renderer == nil || e.tuning.DefaultFOV <= 0 {
		return 1
	}
	fov := e.renderer.FieldOfView()
	if fov <= 0 {
		return 1
	}
	return fov / e.tuning.DefaultFOV
}

func (e *Engine) compose() rotation.Matrix {
	return Compose(e.state.Raw, e.tuning.BaseYawDeg+e.state.YawOffset)
}

func (e *Engine) push() {
	e.state.Camera = e.compose()
	if !e.attached || e.renderer == nil {
		return
	}
	e.pushes++
	e.renderer.SetRotationMatrix(e.state.Camera)
}

// engineHost adapts the Engine to gesture.Host without widening its API.
type engineHost struct{ e *Engine }

func (h engineHost) Horizon() (horizon.Direction, bool) {
	return h.e.state.Horizon, h.e.state.HorizonOK
}

func (h engineHost) Sensitivity() float32 { return h.e.sensitivity() }

func (h engineHost) AddYaw(delta float32) { h.e.addYaw(delta) }

func (h engineHost) ToggleChrome() {
	if h.e.chrome != nil {
		h.e.chrome.ToggleChrome()
	}
}

func (h engineHost) DelegateMultiTouch(ev gesture.TouchEvent) {
	if h.e.renderer != nil {
		h.e.renderer.HandleMultiTouch(ev)
	}
}
