// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, 300*time.Millisecond, cfg.FlickWindow())
	assert.Equal(t, 16*time.Millisecond, cfg.InertiaTick())
	assert.Equal(t, float32(0.92), cfg.InertiaFriction)
}

func TestParseOverridesDefaults(t *testing.T) {
	in := `
# broker
MQTT_BROKER = tcp://pi.local:1883
SENSOR_SOURCE=heading
HEADING_BAUD_RATE=9600
INERTIA_FRICTION=0.85
FLICK_WINDOW_MS=250
DISPLAY_I2C_BUS=/dev/i2c-1
VIEWER_LOCAL_SENSOR=true
`
	cfg, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "tcp://pi.local:1883", cfg.MQTTBroker)
	assert.Equal(t, SourceHeading, cfg.SensorSource)
	assert.Equal(t, 9600, cfg.HeadingBaudRate)
	assert.Equal(t, float32(0.85), cfg.InertiaFriction)
	assert.Equal(t, 250*time.Millisecond, cfg.FlickWindow())
	assert.Equal(t, "/dev/i2c-1", cfg.DisplayI2CBus)
	assert.True(t, cfg.ViewerLocalSensor)
	assert.Equal(t, float32(70), cfg.DefaultFOV, "untouched keys keep defaults")
}

func TestParseErrors(t *testing.T) {
	for name, in := range map[string]string{
		"no equals":     "MQTT_BROKER",
		"unknown key":   "WEATHER=sunny",
		"display addr":  "DISPLAY_I2C_ADDR=0x3D",
		"bad int":       "INERTIA_TICK_MS=fast",
		"bad float":     "DEFAULT_FOV=wide",
		"bad bool":      "IMU_CALIBRATE=maybe",
		"bad source":    "SENSOR_SOURCE=gps",
		"friction high": "INERTIA_FRICTION=1",
		"friction zero": "INERTIA_FRICTION=0",
		"empty broker":  "MQTT_BROKER=",
		"zero fov":      "DEFAULT_FOV=0",
	} {
		_, err := Parse(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestParseReportsLine(t *testing.T) {
	_, err := Parse(strings.NewReader("# ok\nDEFAULT_FOV=70\nINERTIA_TICK_MS=x\n"))
	assert.ErrorContains(t, err, "config line 3")
}

func TestLoadAndGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pano.conf")
	require.NoError(t, os.WriteFile(path, []byte("WEB_SERVER_PORT=9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.WebServerPort)

	_, err = Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)

	require.NoError(t, InitGlobal(path))
	require.NotNil(t, Get())
	assert.Equal(t, 9090, Get().WebServerPort)
}
