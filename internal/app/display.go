package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/pano_viewer/internal/config"
)

// DisplayData holds the latest viewer state for the panel.
type DisplayData struct {
	mu sync.RWMutex

	camera     CameraMessage
	haveCamera bool
	zoom       float32
	chrome     bool
	lastUpdate time.Time
}

type displaySnapshot struct {
	camera     CameraMessage
	haveCamera bool
	zoom       float32
	chrome     bool
	stale      bool
}

func (d *DisplayData) snapshot(now time.Time) displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{
		camera:     d.camera,
		haveCamera: d.haveCamera,
		zoom:       d.zoom,
		chrome:     d.chrome,
		stale:      d.haveCamera && now.Sub(d.lastUpdate) > 2*time.Second,
	}
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := openPanel(bus)
	if err != nil {
		return err
	}
	log.Printf("display: initialized on bus %q", cfg.DisplayI2CBus)

	data := &DisplayData{chrome: true}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeDisplay(client, cfg, data); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for t := range ticker.C {
		img := renderStatus(data.snapshot(t))
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// openPanel initializes the SSD1306 on bus and shows the splash screen. The
// upstream driver always talks to address 0x3C.
func openPanel(bus i2c.Bus) (*ssd1306.Dev, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}
	return dev, nil
}

func subscribeDisplay(client mqtt.Client, cfg *config.Config, data *DisplayData) error {
	if err := subscribe(client, cfg.TopicCamera, func(_ mqtt.Client, msg mqtt.Message) {
		var c CameraMessage
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("display: camera unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.camera = c
		data.haveCamera = true
		data.lastUpdate = time.Now()
		data.mu.Unlock()
	}); err != nil {
		return err
	}
	log.Printf("display: subscribed to %s", cfg.TopicCamera)

	if err := subscribe(client, cfg.TopicZoom, func(_ mqtt.Client, msg mqtt.Message) {
		var z ZoomMessage
		if err := json.Unmarshal(msg.Payload(), &z); err != nil {
			log.Printf("display: zoom unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.zoom = z.Zoom
		data.mu.Unlock()
	}); err != nil {
		return err
	}

	return subscribe(client, cfg.TopicChrome, func(_ mqtt.Client, msg mqtt.Message) {
		var c ChromeMessage
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("display: chrome unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.chrome = c.Visible
		data.mu.Unlock()
	})
}

func newPanel() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// statusLines is the text shown for s, one entry per panel row.
func statusLines(s displaySnapshot) []string {
	if !s.haveCamera {
		return []string{"", "Panorama", "Waiting..."}
	}
	lines := []string{
		fmt.Sprintf("H: %7.1f", s.camera.ViewHeading),
		fmt.Sprintf("P: %7.1f", s.camera.ViewPitch),
		fmt.Sprintf("Z: %4.2f UI:%s", s.zoom, onOff(s.chrome)),
	}
	if s.stale {
		lines = append(lines, "no updates")
	}
	return lines
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func renderStatus(s displaySnapshot) *image1bit.VerticalLSB {
	img, drawer := newPanel()
	for i, line := range statusLines(s) {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newPanel()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Panorama Pi")

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("Look around")

	return img
}
