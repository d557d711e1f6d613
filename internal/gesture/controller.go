// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gesture turns single-finger swipes into yaw changes, measured along
// the horizon so that "swipe right" means the same thing at any device roll.
package gesture

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/relabs-tech/pano_viewer/internal/horizon"
)

// Phase is the controller state.
type Phase int

const (
	Idle Phase = iota
	Down       // finger down, no scroll yet: tap candidate
	Scrolling
	MultiTouch // a second finger joined; yaw is frozen until all fingers lift
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Down:
		return "down"
	case Scrolling:
		return "scrolling"
	case MultiTouch:
		return "multi_touch"
	}
	return "unknown"
}

// Config holds gesture tuning.
type Config struct {
	DegreesPerPixel      float32
	FlickWindow          time.Duration // max gesture duration that still launches inertia
	FlickMinDisplacement float32       // min |net horizon displacement| in pixels for inertia
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		DegreesPerPixel:      0.1,
		FlickWindow:          300 * time.Millisecond,
		FlickMinDisplacement: 10,
	}
}

// Host is what the controller drives.
type Host interface {
	// Horizon returns the current horizon direction, ok=false when undefined.
	Horizon() (horizon.Direction, bool)
	// Sensitivity is fov/defaultFov.
	Sensitivity() float32
	AddYaw(deltaDeg float32)
	ToggleChrome()
	// DelegateMultiTouch hands 2+ finger events to the renderer's pinch-zoom.
	DelegateMultiTouch(ev TouchEvent)
}

// Inertia is the coast the controller launches and cancels.
type Inertia interface {
	Start(displacement, sensitivity float32)
	Stop()
	Running() bool
}

type point struct{ x, y float32 }

// state is the per-gesture record, reset on every first-finger down.
type state struct {
	start         point
	startTime     time.Time
	last          point
	scrolling     bool
	multiTouch    bool
	horizon       horizon.Direction
	haveHorizon   bool
	inertiaAtDown bool
	active        bool
}

// Controller is not safe for concurrent use.
type Controller struct {
	cfg     Config
	host    Host
	inertia Inertia
	g       state
}

// NewController wires a controller to its host and inertia.
func NewController(cfg Config, host Host, in Inertia) *Controller {
	return &Controller{cfg: cfg, host: host, inertia: in}
}

// Phase reports the current state.
func (c *Controller) Phase() Phase {
	switch {
	case !c.g.active:
		return Idle
	case c.g.multiTouch:
		return MultiTouch
	case c.g.scrolling:
		return Scrolling
	default:
		return Down
	}
}

// Reset drops the in-flight gesture, used when a new image is loaded.
func (c *Controller) Reset() {
	c.g = state{}
}

// Handle feeds one touch event through the state machine.
func (c *Controller) Handle(ev TouchEvent) {
	switch ev.Action {
	case ActionDown:
		c.down(ev)
	case ActionPointerDown:
		c.pointerDown(ev)
	case ActionMove:
		c.move(ev)
	case ActionPointerUp:
		if c.g.multiTouch {
			c.host.DelegateMultiTouch(ev)
		}
	case ActionUp:
		c.up(ev)
	case ActionCancel:
		if c.g.multiTouch {
			c.host.DelegateMultiTouch(ev)
		}
		c.g = state{}
	}
}

func (c *Controller) down(ev TouchEvent) {
	wasCoasting := c.inertia.Running()
	c.inertia.Stop()

	p := point{ev.X, ev.Y}
	c.g = state{
		start:         p,
		startTime:     ev.Time,
		last:          p,
		inertiaAtDown: wasCoasting,
		active:        true,
	}
	if ev.Pointers > 1 {
		c.enterMultiTouch(ev)
	}
}

func (c *Controller) pointerDown(ev TouchEvent) {
	if !c.g.active {
		// First finger went down before we were listening.
		c.g = state{active: true, startTime: ev.Time}
	}
	c.enterMultiTouch(ev)
}

func (c *Controller) enterMultiTouch(ev TouchEvent) {
	c.g.multiTouch = true
	c.inertia.Stop()
	c.host.DelegateMultiTouch(ev)
}

func (c *Controller) move(ev TouchEvent) {
	if !c.g.active {
		return
	}
	if c.g.multiTouch || ev.Pointers > 1 {
		if !c.g.multiTouch {
			c.enterMultiTouch(ev)
			return
		}
		c.host.DelegateMultiTouch(ev)
		return
	}

	dx, dy := ev.X-c.g.last.x, ev.Y-c.g.last.y
	c.g.last = point{ev.X, ev.Y}

	dir, ok := c.host.Horizon()
	if !ok {
		return
	}
	c.g.scrolling = true
	c.g.horizon = dir
	c.g.haveHorizon = true

	along := dir.Dot(dx, dy)
	c.host.AddYaw(along * c.host.Sensitivity() * c.cfg.DegreesPerPixel)
}

func (c *Controller) up(ev TouchEvent) {
	g := c.g
	c.g = state{}

	if !g.active {
		return
	}
	if g.multiTouch {
		c.host.DelegateMultiTouch(ev)
		return
	}
	if !g.scrolling {
		if !g.inertiaAtDown {
			c.host.ToggleChrome()
		}
		return
	}
	if !g.haveHorizon || ev.Time.Sub(g.startTime) >= c.cfg.FlickWindow {
		return
	}

	net := g.horizon.Dot(ev.X-g.start.x, ev.Y-g.start.y)
	if math32.Abs(net) > c.cfg.FlickMinDisplacement {
		c.inertia.Start(net, c.host.Sensitivity())
	}
}
