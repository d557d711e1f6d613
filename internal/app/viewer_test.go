// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/pano_viewer/internal/config"
	"github.com/relabs-tech/pano_viewer/internal/fusion"
	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
	"github.com/relabs-tech/pano_viewer/internal/timeutil"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][][]byte)}
}

func (p *fakePublisher) Publish(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = append(p.messages[topic], append([]byte(nil), payload...))
}

func (p *fakePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

func (p *fakePublisher) last(topic string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.messages[topic]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func writePano(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	path := filepath.Join(t.TempDir(), "pano.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func sampleJSON(t *testing.T, heading float64) []byte {
	t.Helper()
	m := orientation.MatrixFromPose(orientation.Pose{Pitch: 90, Yaw: heading})
	b, err := json.Marshal(orientation.NewSampleMessage(orientation.Sample{Matrix: m, Time: time.Now()}))
	require.NoError(t, err)
	return b
}

func startViewer(t *testing.T, cfg *config.Config) (*viewer, *fakePublisher, context.Context) {
	t.Helper()
	pub := newFakePublisher()
	v := newViewer(cfg, pub, timeutil.NewMockClock(time.Unix(0, 0)))
	ctx, cancel := context.WithCancel(context.Background())
	go v.loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-v.loop.Done()
	})
	return v, pub, ctx
}

func snapshot(t *testing.T, v *viewer) fusion.State {
	t.Helper()
	s, err := v.loop.Snapshot(context.Background())
	require.NoError(t, err)
	return s
}

func TestViewerSensorBaselineAndSwipe(t *testing.T) {
	cfg := config.Default()
	v, pub, ctx := startViewer(t, cfg)

	require.NoError(t, v.loadImage(ctx, writePano(t, 64, 32)))
	assert.Equal(t, 1, pub.count(cfg.TopicZoom))

	v.handleSensorPayload(sampleJSON(t, 30))
	assert.Eventually(t, func() bool { return snapshot(t, v).Baseline }, time.Second, 5*time.Millisecond)
	assert.InDelta(t, -30, snapshot(t, v).YawOffset, 1e-3)

	var cam CameraMessage
	require.NoError(t, json.Unmarshal(pub.last(cfg.TopicCamera), &cam))
	assert.InDelta(t, 0, cam.ViewHeading, 1e-3)

	for _, p := range []string{
		`{"action":"down","x":0,"y":0,"time":"2026-01-01T00:00:00Z"}`,
		`{"action":"move","x":100,"y":0,"time":"2026-01-01T00:00:01Z"}`,
		`{"action":"up","x":100,"y":0,"time":"2026-01-01T00:00:02Z"}`,
	} {
		v.handleTouchPayload([]byte(p))
	}
	assert.InDelta(t, -20, snapshot(t, v).YawOffset, 1e-3)
	require.NoError(t, json.Unmarshal(pub.last(cfg.TopicCamera), &cam))
	assert.InDelta(t, 10, cam.ViewHeading, 1e-3)
}

func TestViewerPauseGatesSamples(t *testing.T) {
	cfg := config.Default()
	v, pub, ctx := startViewer(t, cfg)
	require.NoError(t, v.loadImage(ctx, writePano(t, 64, 32)))

	v.handleLifecyclePayload([]byte("pause"))
	assert.Eventually(t, func() bool { return !v.gate.Registered() }, time.Second, 5*time.Millisecond)

	v.handleSensorPayload(sampleJSON(t, 45))
	assert.False(t, snapshot(t, v).HaveSample)
	assert.Zero(t, pub.count(cfg.TopicCamera))

	v.handleLifecyclePayload([]byte(`{"state":"resume"}`))
	assert.Eventually(t, v.gate.Registered, time.Second, 5*time.Millisecond)
	v.handleSensorPayload(sampleJSON(t, 45))
	assert.Eventually(t, func() bool { return snapshot(t, v).HaveSample }, time.Second, 5*time.Millisecond)
}

func TestViewerWithoutSensor(t *testing.T) {
	cfg := config.Default()
	cfg.SensorSource = config.SourceNone
	cfg.NoSensorYawDeg = 90
	v, pub, ctx := startViewer(t, cfg)
	assert.Nil(t, v.gate)

	require.NoError(t, v.loadImage(ctx, writePano(t, 64, 32)))
	assert.Equal(t, float32(90), snapshot(t, v).YawOffset)
	assert.Equal(t, 1, pub.count(cfg.TopicCamera))

	v.handleSensorPayload(sampleJSON(t, 10))
	assert.Equal(t, 1, pub.count(cfg.TopicCamera))
}

func TestViewerRejectsBadImage(t *testing.T) {
	v, pub, ctx := startViewer(t, config.Default())
	assert.Error(t, v.loadImage(ctx, writePano(t, 50, 50)))
	assert.Error(t, v.loadImage(ctx, filepath.Join(t.TempDir(), "missing.jpg")))
	assert.Zero(t, pub.count(v.cfg.TopicZoom))
}

func TestViewerFOVScalesSwipe(t *testing.T) {
	cfg := config.Default()
	cfg.SensorSource = config.SourceNone
	v, _, ctx := startViewer(t, cfg)
	require.NoError(t, v.loadImage(ctx, writePano(t, 64, 32)))

	v.handleFOVPayload([]byte(`{"fov":35}`))
	v.handleFOVPayload([]byte(`{"fov":-1}`))
	assert.Equal(t, float32(35), v.renderer.FieldOfView())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v.loop.Touch(gesture.TouchEvent{Action: gesture.ActionDown, Pointers: 1, Time: base})
	v.loop.Touch(gesture.TouchEvent{Action: gesture.ActionMove, X: 100, Pointers: 1, Time: base.Add(time.Second)})
	assert.InDelta(t, 5, snapshot(t, v).YawOffset, 1e-4)
}

func TestViewerTapTogglesChrome(t *testing.T) {
	cfg := config.Default()
	v, pub, ctx := startViewer(t, cfg)
	require.NoError(t, v.loadImage(ctx, writePano(t, 64, 32)))

	v.handleTouchPayload([]byte(`{"action":"down","x":5,"y":5}`))
	v.handleTouchPayload([]byte(`{"action":"up","x":5,"y":5}`))
	snapshot(t, v)

	var msg ChromeMessage
	require.NoError(t, json.Unmarshal(pub.last(cfg.TopicChrome), &msg))
	assert.False(t, msg.Visible)
}

func TestViewerRoutes(t *testing.T) {
	cfg := config.Default()
	v, _, ctx := startViewer(t, cfg)
	srv := httptest.NewServer(v.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/preview.webp")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, v.loadImage(ctx, writePano(t, 64, 32)))

	resp, err = http.Get(srv.URL + "/api/camera")
	require.NoError(t, err)
	var body cameraResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, 64, body.State.ImageWidth)
	assert.True(t, body.HasSensor)
	assert.Contains(t, body.Image, "pano.png")

	resp, err = http.Get(srv.URL + "/api/preview.webp")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))
}

func TestViewerWebsocketBridge(t *testing.T) {
	cfg := config.Default()
	cfg.SensorSource = config.SourceNone
	v, _, ctx := startViewer(t, cfg)
	srv := httptest.NewServer(v.routes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+srv.URL[len("http"):]+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello wsOutbound
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	assert.NotEmpty(t, hello.ID)
	assert.Eventually(t, func() bool { return v.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, v.loadImage(ctx, writePano(t, 64, 32)))

	// zoom, then the baseline camera
	var msg wsOutbound
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "zoom", msg.Type)
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "camera", msg.Type)
	assert.InDelta(t, 0, msg.Camera.ViewHeading, 1e-4)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, conn.WriteJSON(wsInbound{Type: "touch", Touch: &gesture.TouchEvent{Action: gesture.ActionDown, Time: base}}))
	require.NoError(t, conn.WriteJSON(wsInbound{Type: "touch", Touch: &gesture.TouchEvent{Action: gesture.ActionMove, X: 50, Time: base.Add(time.Second)}}))

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "camera", msg.Type)
	assert.InDelta(t, 5, msg.Camera.ViewHeading, 1e-4)
}
