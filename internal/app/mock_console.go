// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/relabs-tech/pano_viewer/internal/config"
	"github.com/relabs-tech/pano_viewer/internal/fusion"
	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
	"github.com/relabs-tech/pano_viewer/internal/rotation"
	"github.com/relabs-tech/pano_viewer/internal/timeutil"
)

// consoleRenderer keeps the latest camera for periodic printing.
type consoleRenderer struct {
	mu     sync.Mutex
	fov    float32
	camera rotation.Matrix
	pushes int
}

func (r *consoleRenderer) SetRotationMatrix(m rotation.Matrix) {
	r.mu.Lock()
	r.camera = m
	r.pushes++
	r.mu.Unlock()
}

func (r *consoleRenderer) SetZoomFactor(z float32) { fmt.Printf("zoom=%.2f\n", z) }

func (r *consoleRenderer) FieldOfView() float32 { return r.fov }

func (r *consoleRenderer) HandleMultiTouch(gesture.TouchEvent) {}

func (r *consoleRenderer) snapshot() (rotation.Matrix, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.camera, r.pushes
}

// mockFlick is a fast 120px swipe to the right.
func mockFlick(start time.Time) []gesture.TouchEvent {
	at := func(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }
	return []gesture.TouchEvent{
		{Action: gesture.ActionDown, X: 100, Y: 300, Pointers: 1, Time: at(0)},
		{Action: gesture.ActionMove, X: 160, Y: 302, Pointers: 1, Time: at(60)},
		{Action: gesture.ActionMove, X: 220, Y: 305, Pointers: 1, Time: at(120)},
		{Action: gesture.ActionUp, X: 220, Y: 305, Pointers: 1, Time: at(150)},
	}
}

// newConsoleEngine builds an engine tuned from cfg whose renderer holds the
// configured default field of view.
func newConsoleEngine(cfg *config.Config, clock timeutil.Clock) (*consoleRenderer, *fusion.Engine) {
	r := &consoleRenderer{fov: cfg.DefaultFOV}
	e := fusion.New(tuningFromConfig(cfg), r,
		fusion.WithSensor(&sensorGate{}),
		fusion.WithClock(clock))
	return r, e
}

// RunMockConsole runs the fusion engine in-process against the mock source,
// flicking the view every few seconds.
func RunMockConsole() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, e := newConsoleEngine(cfg, timeutil.RealClock{})
	loop := fusion.NewLoop(e, 0)
	go loop.Run(ctx)

	if err := loop.LoadImage(ctx, cfg.MaxTextureWidth, cfg.MaxTextureWidth/2); err != nil {
		return err
	}

	src := orientation.NewMockSource()
	samples := time.NewTicker(sampleInterval(cfg))
	defer samples.Stop()
	prints := time.NewTicker(time.Duration(cfg.ConsoleLogInterval) * time.Millisecond)
	defer prints.Stop()
	flicks := time.NewTicker(5 * time.Second)
	defer flicks.Stop()

	for {
		select {
		case <-ctx.Done():
			<-loop.Done()
			return nil
		case <-samples.C:
			s, err := src.Next()
			if err != nil {
				return err
			}
			loop.SensorSample(s.Matrix)
		case t := <-flicks.C:
			for _, ev := range mockFlick(t) {
				loop.Touch(ev)
			}
		case <-prints.C:
			cam, pushes := r.snapshot()
			st, err := loop.Snapshot(ctx)
			if err != nil {
				continue
			}
			fmt.Printf(
				"VIEW=%7.2f  PITCH=%6.2f  YAW_OFFSET=%7.2f  PUSHES=%d\n",
				fusion.ViewHeading(cam),
				fusion.ViewPitch(cam),
				fusion.NormalizeDegrees(st.YawOffset),
				pushes,
			)
		}
	}
}
