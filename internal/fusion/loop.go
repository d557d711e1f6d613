// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

// ErrStopped is returned by calls made after Run has returned.
var ErrStopped = errors.New("fusion loop stopped")

// Loop serializes every Engine callback onto one goroutine. Touch and
// lifecycle events are queued in order; sensor samples are coalesced so a
// slow renderer only ever sees the newest attitude.
type Loop struct {
	engine *Engine
	events chan func(*Engine)

	mu     sync.Mutex
	latest rotation.Matrix
	fresh  bool
	notify chan struct{}

	done chan struct{}
}

// NewLoop wraps e. queue bounds the ordered event backlog.
func NewLoop(e *Engine, queue int) *Loop {
	if queue <= 0 {
		queue = 64
	}
	return &Loop{
		engine: e,
		events: make(chan func(*Engine), queue),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues fn to run on the loop goroutine. It returns false once the loop
// has stopped. A fn queued while Run is exiting may never run.
func (l *Loop) Post(fn func(*Engine)) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// SensorSample replaces any sample not yet consumed. It never blocks.
func (l *Loop) SensorSample(m rotation.Matrix) {
	l.mu.Lock()
	l.latest = m
	l.fresh = true
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Touch queues a touch event.
func (l *Loop) Touch(ev gesture.TouchEvent) bool {
	return l.Post(func(e *Engine) { e.HandleTouchEvent(ev) })
}

// LoadImage queues an image load and returns its result.
func (l *Loop) LoadImage(ctx context.Context, width, height int) error {
	errc := make(chan error, 1)
	if !l.Post(func(e *Engine) { errc <- e.LoadImage(width, height) }) {
		return ErrStopped
	}
	select {
	case err := <-errc:
		return err
	case <-l.done:
		// Run may have exited with fn still queued.
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause queues a lifecycle pause.
func (l *Loop) Pause() bool {
	return l.Post(func(e *Engine) { e.Pause() })
}

// Resume queues a lifecycle resume.
func (l *Loop) Resume() bool {
	return l.Post(func(e *Engine) {
		if err := e.Resume(); err != nil {
			log.Printf("fusion: %v", err)
		}
	})
}

// Snapshot reads the engine state on the loop goroutine.
func (l *Loop) Snapshot(ctx context.Context) (State, error) {
	out := make(chan State, 1)
	if !l.Post(func(e *Engine) { out <- e.State() }) {
		return State{}, ErrStopped
	}
	select {
	case s := <-out:
		return s, nil
	case <-l.done:
		select {
		case s := <-out:
			return s, nil
		default:
			return State{}, ErrStopped
		}
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run drives the engine until ctx is cancelled, then detaches it.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.engine.Detach()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.events:
			fn(l.engine)
		case <-l.notify:
			if m, ok := l.take(); ok {
				l.engine.HandleSensorSample(m)
			}
		case <-l.engine.InertiaC():
			l.engine.StepInertia()
		}
	}
}

func (l *Loop) take() (rotation.Matrix, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.fresh {
		return rotation.Matrix{}, false
	}
	l.fresh = false
	return l.latest, true
}
