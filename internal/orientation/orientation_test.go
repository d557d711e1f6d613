// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

func TestPoseRoundTrip(t *testing.T) {
	for _, p := range []Pose{
		{Roll: 0, Pitch: 0, Yaw: 0},
		{Roll: 10, Pitch: 20, Yaw: 30},
		{Roll: -35, Pitch: 60, Yaw: -120},
		{Roll: 80, Pitch: -45, Yaw: 170},
	} {
		got := PoseFromMatrix(MatrixFromPose(p))
		assert.InDelta(t, p.Roll, got.Roll, 1e-3, "%+v", p)
		assert.InDelta(t, p.Pitch, got.Pitch, 1e-3, "%+v", p)
		assert.InDelta(t, p.Yaw, got.Yaw, 1e-3, "%+v", p)
	}
}

func TestUprightFacesNorth(t *testing.T) {
	// Viewing axis (-Z device) points north, top edge (+Y) points up.
	view := Upright.Apply([3]float32{0, 0, -1})
	assert.InDelta(t, 1, view[1], 1e-6)
	top := Upright.Apply([3]float32{0, 1, 0})
	assert.InDelta(t, 1, top[2], 1e-6)
	assert.True(t, Upright.ApproxEqual(MatrixFromPose(Pose{Pitch: 90}), 1e-6))
}

func TestPoseFromAccel(t *testing.T) {
	flat := PoseFromAccel(0, 0, 9.81)
	assert.InDelta(t, 0, flat.Pitch, 1e-4)
	assert.InDelta(t, 0, flat.Roll, 1e-4)

	upright := PoseFromAccel(0, 9.81, 0)
	assert.InDelta(t, 90, upright.Pitch, 1e-4)

	// Accelerometer reads row 2 of the attitude matrix.
	want := Pose{Roll: 25, Pitch: 40}
	row := MatrixFromPose(want).Row(2)
	got := PoseFromAccel(float64(row[0]), float64(row[1]), float64(row[2]))
	assert.InDelta(t, want.Roll, got.Roll, 1e-3)
	assert.InDelta(t, want.Pitch, got.Pitch, 1e-3)
}

func TestFromQuaternion(t *testing.T) {
	assert.True(t, FromQuaternion(quat.Number{Real: 1}).ApproxEqual(rotation.Identity(), 1e-6))
	assert.Equal(t, rotation.Identity(), FromQuaternion(quat.Number{}))

	// 90° about Z, not normalized.
	s := math.Sqrt(0.5)
	q := quat.Number{Real: 2 * s, Kmag: 2 * s}
	assert.True(t, FromQuaternion(q).ApproxEqual(rotation.Rotate(rotation.Z, 90), 1e-5))
}

func TestFromRotationVector(t *testing.T) {
	half := 30.0 * math.Pi / 180 / 2
	m := FromRotationVector(math.Sin(half), 0, 0)
	assert.True(t, m.ApproxEqual(rotation.Rotate(rotation.X, 30), 1e-5))
	assert.True(t, m.IsOrthonormal(1e-5))

	// Out-of-range components clamp the scalar part at 0: 180° about X.
	m = FromRotationVector(1.0001, 0, 0)
	assert.True(t, m.IsOrthonormal(1e-4))
}

func TestDecodeSample(t *testing.T) {
	s, err := DecodeSample([]byte(`{"type":"rotation_matrix","matrix":[1,0,0,0,0,-1,0,1,0],"t_ms":1700000000000}`))
	require.NoError(t, err)
	assert.True(t, s.Matrix.ApproxEqual(rotation.Rotate(rotation.X, 90), 1e-6))
	assert.Equal(t, int64(1700000000000), s.Time.UnixMilli())

	s, err = DecodeSample([]byte(`{"quaternion":[0,0,0,1]}`))
	require.NoError(t, err)
	assert.True(t, s.Matrix.ApproxEqual(rotation.Identity(), 1e-6))
	assert.True(t, s.Time.IsZero())

	s, err = DecodeSample([]byte(`{"type":"rotation_vector","quaternion":[0,0,0.7071068]}`))
	require.NoError(t, err)
	assert.True(t, s.Matrix.ApproxEqual(rotation.Rotate(rotation.Z, 90), 1e-4))
}

func TestDecodeSampleRejects(t *testing.T) {
	_, err := DecodeSample([]byte(`{"type":"accelerometer","matrix":[1,0,0,0,1,0,0,0,1]}`))
	assert.True(t, errors.Is(err, ErrNotRotation))

	_, err = DecodeSample([]byte(`{"quaternion":[0,0,0,1e400]}`))
	assert.Error(t, err, "json rejects overflow")

	_, err = SampleMessage{Quaternion: []float64{math.NaN(), 0, 0, 1}}.Sample()
	assert.True(t, errors.Is(err, ErrNonFinite))

	_, err = SampleMessage{Matrix: []float32{float32(math.Inf(1)), 0, 0, 0, 1, 0, 0, 0, 1}}.Sample()
	assert.True(t, errors.Is(err, ErrNonFinite))

	_, err = DecodeSample([]byte(`{"matrix":[1,0,0]}`))
	assert.Error(t, err)

	_, err = DecodeSample([]byte(`{"type":"rotation_vector"}`))
	assert.Error(t, err)

	_, err = DecodeSample([]byte(`not json`))
	assert.Error(t, err)
}

func TestSampleMessageRoundTrip(t *testing.T) {
	in := Sample{Matrix: MatrixFromPose(Pose{Roll: 3, Pitch: 80, Yaw: 45}), Time: time.UnixMilli(1234)}
	out, err := NewSampleMessage(in).Sample()
	require.NoError(t, err)
	assert.Equal(t, in.Matrix, out.Matrix)
	assert.Equal(t, in.Time.UnixMilli(), out.Time.UnixMilli())
}

func TestMockSourceStaysOrthonormal(t *testing.T) {
	base := time.Unix(0, 0)
	now := base
	src := &mockSource{start: base, now: func() time.Time { return now }}
	for i := 0; i < 50; i++ {
		now = base.Add(time.Duration(i) * 137 * time.Millisecond)
		s, err := src.Next()
		require.NoError(t, err)
		assert.True(t, s.Matrix.IsOrthonormal(1e-4))
	}
}

type fakeIMU struct {
	ax, ay, az, gz int16
	err            error
	asleep         bool
}

func (f *fakeIMU) GetAccelerationX() (int16, error) { return f.ax, f.err }
func (f *fakeIMU) GetAccelerationY() (int16, error) { return f.ay, nil }
func (f *fakeIMU) GetAccelerationZ() (int16, error) { return f.az, nil }
func (f *fakeIMU) GetRotationZ() (int16, error)     { return f.gz, nil }

func (f *fakeIMU) SetSleepEnabled(enabled bool) error {
	f.asleep = enabled
	return f.err
}

func TestIMUSourceIntegratesHeading(t *testing.T) {
	dev := &fakeIMU{ay: 16384, gz: -131} // upright, turning clockwise at 1°/s
	now := time.Unix(100, 0)
	src := newIMUSource(dev, 0, func() time.Time { return now })

	s, err := src.Next()
	require.NoError(t, err)
	assert.True(t, s.Matrix.ApproxEqual(Upright, 1e-5))

	now = now.Add(2 * time.Second)
	s, err = src.Next()
	require.NoError(t, err)
	assert.True(t, s.Matrix.ApproxEqual(MatrixFromPose(Pose{Pitch: 90, Yaw: 2}), 1e-5))

	dev.err = errors.New("spi timeout")
	_, err = src.Next()
	assert.ErrorContains(t, err, "spi timeout")
}

func TestIMUSourceCloseSleepsChip(t *testing.T) {
	dev := &fakeIMU{ay: 16384}
	var closer io.Closer = newIMUSource(dev, 0, time.Now)
	require.NoError(t, closer.Close())
	assert.True(t, dev.asleep)

	dev.err = errors.New("bus gone")
	assert.ErrorContains(t, closer.Close(), "IMU sleep")
}

func TestParseHeading(t *testing.T) {
	h, ok := ParseHeading("$HEHDT,123.4,T*2B\r\n")
	require.True(t, ok)
	assert.InDelta(t, 123.4, h, 1e-9)

	h, ok = ParseHeading("$HCHDG,98.3,0.0,E,12.6,W*57")
	require.True(t, ok)
	assert.InDelta(t, 85.7, h, 1e-9)

	_, ok = ParseHeading("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	assert.False(t, ok)
	_, ok = ParseHeading("$HEHDT,123.4,T*00")
	assert.False(t, ok, "bad checksum")
	_, ok = ParseHeading("garbage")
	assert.False(t, ok)
}

func TestHeadingSourceSkipsNoise(t *testing.T) {
	in := strings.Join([]string{
		"",
		"$HEHDT,12",
		"$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A",
		"$HEHDT,123.4,T*2B",
		"",
	}, "\n")
	src := newHeadingSource(strings.NewReader(in))

	s, err := src.Next()
	require.NoError(t, err)
	assert.True(t, s.Matrix.ApproxEqual(MatrixFromPose(Pose{Pitch: 90, Yaw: 123.4}), 1e-5))

	_, err = src.Next()
	assert.Error(t, err, "EOF")
}
