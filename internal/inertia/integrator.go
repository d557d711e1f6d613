// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package inertia keeps the view coasting after a fast swipe and lets the
// velocity decay to rest.
package inertia

import (
	"time"

	"github.com/chewxy/math32"

	"github.com/relabs-tech/pano_viewer/internal/timeutil"
)

// Config holds the decay tuning.
type Config struct {
	LaunchScale  float32       // displacement -> initial velocity, before FoV sensitivity
	Friction     float32       // velocity multiplier per tick, 0 < f < 1
	StopVelocity float32       // stop once |velocity| drops below this
	YawScale     float32       // degrees of yaw per unit of velocity per tick
	Tick         time.Duration // fixed timestep
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		LaunchScale:  0.3,
		Friction:     0.92,
		StopVelocity: 0.5,
		YawScale:     0.1,
		Tick:         16 * time.Millisecond,
	}
}

// Integrator runs at most one coast at a time. It is not safe for concurrent
// use: Start, Stop and Step must all be called from the owning loop.
type Integrator struct {
	cfg   Config
	clock timeutil.Clock
	apply func(deltaDeg float32)

	ticker   timeutil.Ticker // current run; nil when stopped
	velocity float32
	running  bool
	ticks    int
}

// New creates an Integrator that feeds yaw deltas to apply. With a nil clock
// no ticker is scheduled and the owner must call Step itself.
func New(cfg Config, clock timeutil.Clock, apply func(deltaDeg float32)) *Integrator {
	return &Integrator{cfg: cfg, clock: clock, apply: apply}
}

// Start launches a coast from a swipe displacement, replacing any current run.
func (in *Integrator) Start(displacement, sensitivity float32) {
	in.Stop()
	in.velocity = displacement * in.cfg.LaunchScale * sensitivity
	in.running = true
	in.ticks = 0
	if in.clock != nil {
		in.ticker = in.clock.NewTicker(in.cfg.Tick)
	}
}

// Stop discards the remaining velocity and deschedules the ticker.
func (in *Integrator) Stop() {
	if in.ticker != nil {
		in.ticker.Stop()
		in.ticker = nil
	}
	in.running = false
	in.velocity = 0
}

// Running reports whether a coast is in progress.
func (in *Integrator) Running() bool { return in.running }

// Velocity is the current velocity, zero when stopped.
func (in *Integrator) Velocity() float32 { return in.velocity }

// Ticks is the number of steps taken by the current or last run.
func (in *Integrator) Ticks() int { return in.ticks }

// C is the tick channel of the current run. It is nil when stopped, so a
// select on it blocks and ticks of a replaced run are never observed.
func (in *Integrator) C() <-chan time.Time {
	if in.ticker == nil {
		return nil
	}
	return in.ticker.C()
}

// Step advances one tick. It returns false once the coast has ended.
func (in *Integrator) Step() bool {
	if !in.running {
		return false
	}
	in.ticks++
	in.velocity *= in.cfg.Friction
	if math32.Abs(in.velocity) < in.cfg.StopVelocity {
		in.Stop()
		return false
	}
	if in.apply != nil {
		in.apply(in.velocity * in.cfg.YawScale)
	}
	return true
}

// MaxTicks bounds the number of Steps a run launched with velocity v0 can take:
// ceil(log(stop/|v0|) / log(friction)).
func MaxTicks(v0, friction, stop float32) int {
	v0 = math32.Abs(v0)
	if v0 < stop || friction <= 0 || friction >= 1 {
		return 1
	}
	return int(math32.Ceil(math32.Log(stop/v0) / math32.Log(friction)))
}
