// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

// Sensor event types carried on the wire.
const (
	TypeRotationVector     = "rotation_vector"
	TypeGameRotationVector = "game_rotation_vector"
	TypeRotationMatrix     = "rotation_matrix"
)

var (
	// ErrNotRotation marks a sensor event that is not an attitude reading.
	ErrNotRotation = errors.New("not a rotation event")
	// ErrNonFinite marks a sample with NaN or Inf components.
	ErrNonFinite = errors.New("non-finite sample")
)

// SampleMessage is the JSON form of a sensor event. Exactly one of Matrix
// (9 or 16 values, row-major) or Quaternion (x, y, z[, w]) is set.
type SampleMessage struct {
	Type       string    `json:"type,omitempty"`
	Matrix     []float32 `json:"matrix,omitempty"`
	Quaternion []float64 `json:"quaternion,omitempty"`
	TimeMS     int64     `json:"t_ms,omitempty"`
}

// NewSampleMessage encodes s as a 16-value rotation matrix message.
func NewSampleMessage(s Sample) SampleMessage {
	m := make([]float32, 16)
	copy(m, s.Matrix[:])
	msg := SampleMessage{Type: TypeRotationMatrix, Matrix: m}
	if !s.Time.IsZero() {
		msg.TimeMS = s.Time.UnixMilli()
	}
	return msg
}

// DecodeSample parses a JSON sensor event.
func DecodeSample(payload []byte) (Sample, error) {
	var msg SampleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	return msg.Sample()
}

// Sample converts the message to a Sample.
func (msg SampleMessage) Sample() (Sample, error) {
	switch msg.Type {
	case "", TypeRotationVector, TypeGameRotationVector, TypeRotationMatrix:
	default:
		return Sample{}, fmt.Errorf("sensor type %q: %w", msg.Type, ErrNotRotation)
	}

	var s Sample
	if msg.TimeMS != 0 {
		s.Time = time.UnixMilli(msg.TimeMS)
	}

	switch {
	case len(msg.Matrix) > 0:
		for _, v := range msg.Matrix {
			if !finite(float64(v)) {
				return Sample{}, ErrNonFinite
			}
		}
		switch len(msg.Matrix) {
		case 9:
			var r [9]float32
			copy(r[:], msg.Matrix)
			s.Matrix = rotation.FromMat3(r)
		case 16:
			copy(s.Matrix[:], msg.Matrix)
		default:
			return Sample{}, fmt.Errorf("rotation matrix needs 9 or 16 values, got %d", len(msg.Matrix))
		}

	case len(msg.Quaternion) > 0:
		for _, v := range msg.Quaternion {
			if !finite(v) {
				return Sample{}, ErrNonFinite
			}
		}
		q := msg.Quaternion
		switch len(q) {
		case 3:
			s.Matrix = FromRotationVector(q[0], q[1], q[2])
		case 4, 5: // some platforms append a heading accuracy
			s.Matrix = FromQuaternion(quat.Number{Real: q[3], Imag: q[0], Jmag: q[1], Kmag: q[2]})
		default:
			return Sample{}, fmt.Errorf("quaternion needs 3 to 5 values, got %d", len(q))
		}

	default:
		return Sample{}, errors.New("sample has neither matrix nor quaternion")
	}
	return s, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
