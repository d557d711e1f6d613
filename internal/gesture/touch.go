// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import (
	"fmt"
	"time"
)

// Action is the kind of pointer event.
type Action int

const (
	ActionDown        Action = iota // first finger down
	ActionPointerDown               // additional finger down
	ActionMove
	ActionPointerUp // a finger lifted, others remain
	ActionUp        // last finger lifted
	ActionCancel
)

var actionNames = map[Action]string{
	ActionDown:        "down",
	ActionPointerDown: "pointer_down",
	ActionMove:        "move",
	ActionPointerUp:   "pointer_up",
	ActionUp:          "up",
	ActionCancel:      "cancel",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	s, ok := actionNames[a]
	if !ok {
		return nil, fmt.Errorf("unknown touch action %d", int(a))
	}
	return []byte(s), nil
}

// UnmarshalText decodes an action name.
func (a *Action) UnmarshalText(b []byte) error {
	for k, v := range actionNames {
		if v == string(b) {
			*a = k
			return nil
		}
	}
	return fmt.Errorf("unknown touch action %q", string(b))
}

// TouchEvent is one pointer event in screen pixels (x right, y down).
type TouchEvent struct {
	Action   Action    `json:"action"`
	X        float32   `json:"x"`
	Y        float32   `json:"y"`
	Pointers int       `json:"pointers"`
	Time     time.Time `json:"time"`
}
