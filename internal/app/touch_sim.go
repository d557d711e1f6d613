// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gdamore/tcell/v2"

	"github.com/relabs-tech/pano_viewer/internal/config"
	"github.com/relabs-tech/pano_viewer/internal/gesture"
)

// Terminal cells are scaled to pixels so drags land in the engine's
// degrees-per-pixel range.
const (
	cellWidthPx  = 10
	cellHeightPx = 20
)

// touchTranslator turns terminal mouse state into touch events. The primary
// button is the first finger; holding the secondary button as well adds a
// second finger.
type touchTranslator struct {
	fingers int
	x, y    int
}

func fingerCount(b tcell.ButtonMask) int {
	n := 0
	if b&tcell.ButtonPrimary != 0 {
		n++
		if b&tcell.ButtonSecondary != 0 {
			n++
		}
	}
	return n
}

// Translate returns the touch events implied by one mouse event.
func (t *touchTranslator) Translate(ev *tcell.EventMouse) []gesture.TouchEvent {
	x, y := ev.Position()
	n := fingerCount(ev.Buttons())
	at := ev.When()

	mk := func(a gesture.Action, pointers int) gesture.TouchEvent {
		return gesture.TouchEvent{
			Action:   a,
			X:        float32(x * cellWidthPx),
			Y:        float32(y * cellHeightPx),
			Pointers: pointers,
			Time:     at,
		}
	}

	var out []gesture.TouchEvent
	switch {
	case t.fingers == 0 && n > 0:
		out = append(out, mk(gesture.ActionDown, n))
	case t.fingers > 0 && n == 0:
		if t.fingers > 1 {
			out = append(out, mk(gesture.ActionPointerUp, t.fingers))
		}
		out = append(out, mk(gesture.ActionUp, 1))
	case n > t.fingers:
		out = append(out, mk(gesture.ActionPointerDown, n))
	case n < t.fingers:
		out = append(out, mk(gesture.ActionPointerUp, t.fingers))
	case n > 0 && (x != t.x || y != t.y):
		out = append(out, mk(gesture.ActionMove, n))
	}

	t.fingers = n
	t.x, t.y = x, y
	return out
}

// RunTouchSim is a terminal touch pad for the viewer.
func RunTouchSim() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDTouch)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	pub := mqttPublisher{client: client, prefix: "touch"}

	s, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("screen init failed: %w", err)
	}
	if err := s.Init(); err != nil {
		return fmt.Errorf("screen start failed: %w", err)
	}
	defer s.Fini()
	s.EnableMouse()

	var (
		mu     sync.Mutex
		status = "waiting for camera"
		sent   int
	)
	if err := subscribe(client, cfg.TopicCamera, func(_ mqtt.Client, msg mqtt.Message) {
		var c CameraMessage
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			return
		}
		mu.Lock()
		status = formatCamera(c)
		mu.Unlock()
	}); err != nil {
		return err
	}

	tr := &touchTranslator{}
	quit := make(chan struct{})

	// Input handler
	go func() {
		defer close(quit)
		for {
			switch ev := s.PollEvent().(type) {
			case nil:
				return
			case *tcell.EventKey:
				switch ev.Key() {
				case tcell.KeyEscape, tcell.KeyCtrlC:
					return
				case tcell.KeyRune:
					switch ev.Rune() {
					case 'q', 'Q':
						return
					case 'p':
						pub.Publish(cfg.TopicLifecycle, []byte(LifecyclePause))
					case 'r':
						pub.Publish(cfg.TopicLifecycle, []byte(LifecycleResume))
					}
				}
			case *tcell.EventMouse:
				for _, te := range tr.Translate(ev) {
					payload, err := json.Marshal(te)
					if err != nil {
						log.Printf("touch: marshal error: %v", err)
						continue
					}
					pub.Publish(cfg.TopicTouch, payload)
					mu.Lock()
					sent++
					mu.Unlock()
				}
			case *tcell.EventResize:
				s.Sync()
			}
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	title := tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	dim := tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	for {
		select {
		case <-quit:
			return nil
		case <-ticker.C:
			mu.Lock()
			line, n := status, sent
			mu.Unlock()

			s.Clear()
			_, h := s.Size()
			drawText(s, 1, 0, title, "panorama touch pad")
			drawText(s, 1, 1, dim, "drag: swipe  left+right: second finger  p/r: pause/resume  q: quit")
			drawText(s, 1, h-2, tcell.StyleDefault, line)
			drawText(s, 1, h-1, dim, fmt.Sprintf("events sent: %d", n))
			s.Show()
		}
	}
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, str string) {
	for i, r := range str {
		s.SetContent(x+i, y, r, nil, style)
	}
}
