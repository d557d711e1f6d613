// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/pano_viewer/internal/config"
	"github.com/relabs-tech/pano_viewer/internal/fusion"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
	"github.com/relabs-tech/pano_viewer/internal/panorama"
	"github.com/relabs-tech/pano_viewer/internal/timeutil"
)

const previewWidth = 512

// viewer hosts the fusion engine: transport in, renderer pushes out.
type viewer struct {
	cfg      *config.Config
	loop     *fusion.Loop
	engine   *fusion.Engine
	renderer *remoteRenderer
	gate     *sensorGate // nil when SENSOR_SOURCE=none
	hub      *Hub
	now      func() time.Time

	mu        sync.Mutex
	image     *panorama.Image
	imagePath string
}

func newViewer(cfg *config.Config, pub publisher, clock timeutil.Clock) *viewer {
	v := &viewer{cfg: cfg, now: time.Now}
	v.hub = NewHub(v.handleWS)
	v.renderer = newRemoteRenderer(pub, v.hub, rendererTopics{
		camera:     cfg.TopicCamera,
		zoom:       cfg.TopicZoom,
		multiTouch: cfg.TopicMultiTouch,
		chrome:     cfg.TopicChrome,
	}, cfg.DefaultFOV)

	opts := []fusion.Option{fusion.WithClock(clock), fusion.WithChrome(v.renderer)}
	if cfg.SensorSource != config.SourceNone {
		v.gate = &sensorGate{}
		opts = append(opts, fusion.WithSensor(v.gate))
	}
	v.engine = fusion.New(tuningFromConfig(cfg), v.renderer, opts...)
	v.loop = fusion.NewLoop(v.engine, 128)
	return v
}

// RunViewer runs the viewer host until SIGINT/SIGTERM.
func RunViewer() error {
	cfg := config.Get()
	log.Println("starting panorama viewer")

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDViewer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("viewer: connected to MQTT broker at %s", cfg.MQTTBroker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := newViewer(cfg, mqttPublisher{client: client, prefix: "viewer"}, timeutil.RealClock{})
	go v.loop.Run(ctx)

	handlers := map[string]func([]byte){
		cfg.TopicSensor:    v.handleSensorPayload,
		cfg.TopicTouch:     v.handleTouchPayload,
		cfg.TopicLifecycle: v.handleLifecyclePayload,
		cfg.TopicFOV:       v.handleFOVPayload,
		cfg.TopicImage: func(p []byte) {
			path, err := ParseImageRequest(p)
			if err != nil {
				log.Printf("viewer: %v", err)
				return
			}
			go v.loadImage(ctx, path)
		},
	}
	for topic, h := range handlers {
		if err := subscribe(client, topic, func(_ mqtt.Client, msg mqtt.Message) { h(msg.Payload()) }); err != nil {
			return err
		}
		log.Printf("viewer: subscribed to %s", topic)
	}

	if cfg.ViewerLocalSensor && v.gate != nil {
		go v.runLocalSensor(ctx)
	}
	if cfg.ImagePath != "" {
		go v.loadImage(ctx, cfg.ImagePath)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           v.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("viewer: web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}

	<-v.loop.Done()
	log.Println("viewer: shutting down")
	return nil
}

func (v *viewer) handleSensorPayload(p []byte) {
	if v.gate == nil || !v.gate.Registered() {
		return
	}
	s, err := orientation.DecodeSample(p)
	if err != nil {
		log.Printf("viewer: sensor sample dropped: %v", err)
		return
	}
	v.loop.SensorSample(s.Matrix)
}

func (v *viewer) handleTouchPayload(p []byte) {
	ev, err := DecodeTouch(p, v.now)
	if err != nil {
		log.Printf("viewer: %v", err)
		return
	}
	v.loop.Touch(ev)
}

func (v *viewer) handleLifecyclePayload(p []byte) {
	cmd, err := ParseLifecycle(p)
	if err != nil {
		log.Printf("viewer: %v", err)
		return
	}
	log.Printf("viewer: lifecycle %s", cmd)
	if cmd == LifecyclePause {
		v.loop.Pause()
	} else {
		v.loop.Resume()
	}
}

func (v *viewer) handleFOVPayload(p []byte) {
	var msg FOVMessage
	if err := json.Unmarshal(p, &msg); err != nil {
		log.Printf("viewer: fov unmarshal error: %v", err)
		return
	}
	v.renderer.SetFieldOfView(msg.FOV)
}

func (v *viewer) handleWS(clientID string, msg wsInbound) {
	switch msg.Type {
	case "touch":
		if msg.Touch == nil {
			return
		}
		ev := *msg.Touch
		if ev.Pointers <= 0 {
			ev.Pointers = 1
		}
		if ev.Time.IsZero() {
			ev.Time = v.now()
		}
		v.loop.Touch(ev)
	case "sensor":
		if msg.Sensor == nil || v.gate == nil || !v.gate.Registered() {
			return
		}
		s, err := msg.Sensor.Sample()
		if err != nil {
			log.Printf("ws: sensor sample from %s dropped: %v", clientID, err)
			return
		}
		v.loop.SensorSample(s.Matrix)
	case "fov":
		v.renderer.SetFieldOfView(msg.FOV)
	default:
		log.Printf("ws: unknown message type %q from %s", msg.Type, clientID)
	}
}

// loadImage decodes off the engine goroutine and posts the result back.
func (v *viewer) loadImage(ctx context.Context, path string) error {
	img, err := panorama.Open(path, imageOptions(v.cfg))
	if err != nil {
		log.Printf("viewer: image load failed: %v", err)
		return err
	}
	if err := v.loop.LoadImage(ctx, img.Width, img.Height); err != nil {
		log.Printf("viewer: engine rejected %s: %v", path, err)
		return err
	}

	v.mu.Lock()
	v.image = img
	v.imagePath = path
	v.mu.Unlock()

	if img.Downscaled {
		log.Printf("viewer: loaded %s (%dx%d, downscaled from %dx%d)", path, img.Width, img.Height, img.SourceWidth, img.SourceHeight)
	} else {
		log.Printf("viewer: loaded %s (%dx%d)", path, img.Width, img.Height)
	}
	return nil
}

func (v *viewer) runLocalSensor(ctx context.Context) {
	src, closer, err := openSource(v.cfg)
	if err != nil {
		log.Printf("viewer: local sensor unavailable: %v", err)
		return
	}
	defer closer.Close()

	ticker := time.NewTicker(sampleInterval(v.cfg))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := src.Next()
			if err != nil {
				log.Printf("viewer: local sensor error: %v", err)
				if errors.Is(err, io.EOF) {
					return
				}
				continue
			}
			if v.gate.Registered() {
				v.loop.SensorSample(s.Matrix)
			}
		}
	}
}

type cameraResponse struct {
	State     fusion.State   `json:"state"`
	Camera    *CameraMessage `json:"camera,omitempty"`
	Image     string         `json:"image,omitempty"`
	Clients   int            `json:"ws_clients"`
	HasSensor bool           `json:"has_sensor"`
}

func (v *viewer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/camera", func(w http.ResponseWriter, r *http.Request) {
		state, err := v.loop.Snapshot(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		resp := cameraResponse{State: state, Clients: v.hub.Clients(), HasSensor: v.gate != nil}
		if cam, ok := v.renderer.LastCamera(); ok {
			resp.Camera = &cam
		}
		v.mu.Lock()
		resp.Image = v.imagePath
		v.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("viewer: json encode error: %v", err)
		}
	})

	mux.HandleFunc("/api/preview.webp", func(w http.ResponseWriter, r *http.Request) {
		v.mu.Lock()
		img := v.image
		v.mu.Unlock()
		if img == nil {
			http.Error(w, "no image loaded", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/webp")
		if err := panorama.EncodePreview(w, img.Pixels, previewWidth); err != nil {
			log.Printf("viewer: %v", err)
		}
	})

	mux.Handle("/ws", v.hub)
	return mux
}
