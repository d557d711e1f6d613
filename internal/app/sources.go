// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/pano_viewer/internal/config"
	"github.com/relabs-tech/pano_viewer/internal/fusion"
	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/inertia"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
	"github.com/relabs-tech/pano_viewer/internal/panorama"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSource returns the orientation source selected by SENSOR_SOURCE.
func openSource(cfg *config.Config) (orientation.Source, io.Closer, error) {
	switch cfg.SensorSource {
	case config.SourceMock:
		log.Println("using mock orientation source")
		return orientation.NewMockSource(), nopCloser{}, nil
	case config.SourceIMU:
		src, closer, err := orientation.NewIMUSource(orientation.IMUOptions{
			SPIDevice: cfg.IMUSPIDevice,
			CSPin:     cfg.IMUCSPin,
			GyroLSB:   cfg.IMUGyroLSB,
			Calibrate: cfg.IMUCalibrate,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Printf("using MPU9250 on %s", cfg.IMUSPIDevice)
		return src, closer, nil
	case config.SourceHeading:
		return orientation.NewHeadingSource(orientation.HeadingOptions{
			PortName: cfg.HeadingSerialPort,
			BaudRate: uint(cfg.HeadingBaudRate),
		})
	default:
		return nil, nil, fmt.Errorf("no orientation source configured (SENSOR_SOURCE=%s)", cfg.SensorSource)
	}
}

// tuningFromConfig maps the config keys onto the engine's constants.
func tuningFromConfig(cfg *config.Config) fusion.Tuning {
	return fusion.Tuning{
		DefaultFOV:     cfg.DefaultFOV,
		ZoomFactor:     cfg.ZoomFactor,
		BaseYawDeg:     cfg.BaseYawDeg,
		NoSensorYawDeg: cfg.NoSensorYawDeg,
		HorizonEpsilon: cfg.HorizonEpsilon,
		HeadingEpsilon: cfg.HeadingEpsilon,
		Gesture: gesture.Config{
			DegreesPerPixel:      cfg.DegPerPixel,
			FlickWindow:          cfg.FlickWindow(),
			FlickMinDisplacement: cfg.FlickMinDisplacement,
		},
		Inertia: inertia.Config{
			LaunchScale:  cfg.InertiaLaunchScale,
			Friction:     cfg.InertiaFriction,
			StopVelocity: cfg.InertiaStopVelocity,
			YawScale:     cfg.InertiaYawScale,
			Tick:         cfg.InertiaTick(),
		},
	}
}

func imageOptions(cfg *config.Config) panorama.Options {
	return panorama.Options{MaxWidth: cfg.MaxTextureWidth, AspectTolerance: cfg.AspectTolerance}
}

func sampleInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.SensorSampleInterval) * time.Millisecond
}
