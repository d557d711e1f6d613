// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"io"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// IMUOptions selects the MPU9250 wiring.
type IMUOptions struct {
	SPIDevice string  // e.g. /dev/spidev6.0
	CSPin     string  // GPIO name of the chip select
	GyroLSB   float64 // raw counts per °/s, 131 at ±250°/s
	Calibrate bool
}

// accelReader is the slice of the MPU9250 API the source uses.
type accelReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
	GetRotationZ() (int16, error)
	SetSleepEnabled(enabled bool) error
}

type imuSource struct {
	dev     accelReader
	gyroLSB float64
	now     func() time.Time

	yaw  float64
	last time.Time
}

// NewIMUSource initializes an MPU9250 over SPI and returns a Source that
// derives tilt from the accelerometer and heading from the integrated
// gyro Z rate. Heading starts at 0 and drifts; baseline capture on image
// load hides the absolute value anyway.
//
// The closer puts the chip to sleep. The SPI port itself stays open: the
// upstream transport does not hand its port back.
func NewIMUSource(opts IMUOptions) (Source, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(opts.CSPin)
	if cs == nil {
		return nil, nil, fmt.Errorf("IMU CS pin %q not found", opts.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(opts.SPIDevice, cs)
	if err != nil {
		return nil, nil, fmt.Errorf("IMU SPI transport (%s): %w", opts.SPIDevice, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, nil, fmt.Errorf("IMU new device: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, nil, fmt.Errorf("IMU init: %w", err)
	}

	if opts.Calibrate {
		if err := imu.Calibrate(); err != nil {
			return nil, nil, fmt.Errorf("IMU calibrate: %w", err)
		}
	}

	src := newIMUSource(imu, opts.GyroLSB, time.Now)
	return src, src, nil
}

func newIMUSource(dev accelReader, gyroLSB float64, now func() time.Time) *imuSource {
	if gyroLSB <= 0 {
		gyroLSB = 131
	}
	return &imuSource{dev: dev, gyroLSB: gyroLSB, now: now}
}

// Next reads one accelerometer + gyro sample.
func (s *imuSource) Next() (Sample, error) {
	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return Sample{}, fmt.Errorf("IMU acc X: %w", err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return Sample{}, fmt.Errorf("IMU acc Y: %w", err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return Sample{}, fmt.Errorf("IMU acc Z: %w", err)
	}
	gz, err := s.dev.GetRotationZ()
	if err != nil {
		return Sample{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	t := s.now()
	if !s.last.IsZero() {
		dt := t.Sub(s.last).Seconds()
		// Counter-clockwise rate about device Z turns the heading left.
		s.yaw = math.Mod(s.yaw-float64(gz)/s.gyroLSB*dt, 360)
	}
	s.last = t

	pose := PoseFromAccel(float64(ax), float64(ay), float64(az))
	pose.Yaw = s.yaw
	return Sample{Matrix: MatrixFromPose(pose), Time: t}, nil
}

// Close puts the IMU to sleep.
func (s *imuSource) Close() error {
	if err := s.dev.SetSleepEnabled(true); err != nil {
		return fmt.Errorf("IMU sleep: %w", err)
	}
	return nil
}
