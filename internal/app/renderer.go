// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/rotation"
)

const publishTimeout = 100 * time.Millisecond

// publisher is the outbound half of the transport.
type publisher interface {
	Publish(topic string, payload []byte)
}

type mqttPublisher struct {
	client mqtt.Client
	prefix string
}

// Publish sends at QoS 0 and never blocks the caller for long.
func (p mqttPublisher) Publish(topic string, payload []byte) {
	token := p.client.Publish(topic, 0, false, payload)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		log.Printf("%s: MQTT publish error (%s): %v", p.prefix, topic, token.Error())
	}
}

// connectMQTT connects with a per-process client ID so several viewers can
// share a broker.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	id := fmt.Sprintf("%s-%s", clientID, uuid.NewString()[:8])
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(id).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	return client, nil
}

func subscribe(client mqtt.Client, topic string, cb mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, cb)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

type rendererTopics struct {
	camera     string
	zoom       string
	multiTouch string
	chrome     string
}

// remoteRenderer forwards engine output to renderers listening on MQTT and
// websocket. The FoV is reported back by the renderer.
type remoteRenderer struct {
	pub    publisher
	hub    *Hub
	topics rendererTopics
	now    func() time.Time

	mu      sync.Mutex
	fov     float32
	last    CameraMessage
	hasLast bool
	chrome  bool
	pushes  int
}

func newRemoteRenderer(pub publisher, hub *Hub, topics rendererTopics, fov float32) *remoteRenderer {
	return &remoteRenderer{pub: pub, hub: hub, topics: topics, now: time.Now, fov: fov, chrome: true}
}

func (r *remoteRenderer) SetRotationMatrix(m rotation.Matrix) {
	msg := NewCameraMessage(m, r.now())
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("viewer: camera marshal error: %v", err)
		return
	}

	r.mu.Lock()
	r.last = msg
	r.hasLast = true
	r.pushes++
	r.mu.Unlock()

	r.pub.Publish(r.topics.camera, payload)
	if r.hub != nil {
		r.hub.Broadcast(wsOutbound{Type: "camera", Camera: &msg})
	}
}

func (r *remoteRenderer) SetZoomFactor(z float32) {
	msg := ZoomMessage{Zoom: z}
	payload, _ := json.Marshal(msg)
	r.pub.Publish(r.topics.zoom, payload)
	if r.hub != nil {
		r.hub.Broadcast(wsOutbound{Type: "zoom", Zoom: &msg})
	}
}

func (r *remoteRenderer) FieldOfView() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fov
}

// SetFieldOfView records the renderer's current FoV. Non-positive values are
// ignored.
func (r *remoteRenderer) SetFieldOfView(fov float32) {
	if fov <= 0 || fov >= 180 {
		return
	}
	r.mu.Lock()
	r.fov = fov
	r.mu.Unlock()
}

func (r *remoteRenderer) HandleMultiTouch(ev gesture.TouchEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("viewer: touch marshal error: %v", err)
		return
	}
	r.pub.Publish(r.topics.multiTouch, payload)
}

// ToggleChrome flips the chrome visibility and announces it.
func (r *remoteRenderer) ToggleChrome() {
	r.mu.Lock()
	r.chrome = !r.chrome
	msg := ChromeMessage{Visible: r.chrome, TimeMS: r.now().UnixMilli()}
	r.mu.Unlock()

	payload, _ := json.Marshal(msg)
	r.pub.Publish(r.topics.chrome, payload)
	if r.hub != nil {
		r.hub.Broadcast(wsOutbound{Type: "chrome", Chrome: &msg})
	}
}

// LastCamera is the most recent push.
func (r *remoteRenderer) LastCamera() (CameraMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// sensorGate stands in for platform sensor registration: samples from MQTT,
// websocket or a local source only reach the engine while registered.
type sensorGate struct {
	on atomic.Bool
}

func (g *sensorGate) Register() error {
	g.on.Store(true)
	log.Println("viewer: sensor registered")
	return nil
}

func (g *sensorGate) Unregister() {
	g.on.Store(false)
	log.Println("viewer: sensor unregistered")
}

func (g *sensorGate) Registered() bool { return g.on.Load() }
