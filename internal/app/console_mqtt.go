package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/pano_viewer/internal/config"
	"github.com/relabs-tech/pano_viewer/internal/gesture"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
)

// formatCamera renders one camera push for the console.
func formatCamera(c CameraMessage) string {
	return fmt.Sprintf("[CAM ] HEADING=%7.2f  PITCH=%6.2f  t=%d", c.ViewHeading, c.ViewPitch, c.TimeMS)
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Camera pushes are the busiest topic.
	if err := subscribe(client, cfg.TopicCamera, func(_ mqtt.Client, msg mqtt.Message) {
		var c CameraMessage
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("console: camera unmarshal error: %v", err)
			return
		}
		fmt.Println(formatCamera(c))
	}); err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", cfg.TopicCamera)

	if err := subscribe(client, cfg.TopicZoom, func(_ mqtt.Client, msg mqtt.Message) {
		var z ZoomMessage
		if err := json.Unmarshal(msg.Payload(), &z); err != nil {
			log.Printf("console: zoom unmarshal error: %v", err)
			return
		}
		fmt.Printf("[ZOOM] %.2f\n", z.Zoom)
	}); err != nil {
		return err
	}

	if err := subscribe(client, cfg.TopicChrome, func(_ mqtt.Client, msg mqtt.Message) {
		var c ChromeMessage
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("console: chrome unmarshal error: %v", err)
			return
		}
		fmt.Printf("[UI  ] chrome visible=%v\n", c.Visible)
	}); err != nil {
		return err
	}

	if err := subscribe(client, cfg.TopicMultiTouch, func(_ mqtt.Client, msg mqtt.Message) {
		var ev gesture.TouchEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: touch unmarshal error: %v", err)
			return
		}
		fmt.Printf("[PNCH] %-12s x=%6.1f y=%6.1f fingers=%d\n", ev.Action, ev.X, ev.Y, ev.Pointers)
	}); err != nil {
		return err
	}

	if err := subscribe(client, cfg.TopicSensor, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := orientation.DecodeSample(msg.Payload())
		if err != nil {
			log.Printf("console: sensor decode error: %v", err)
			return
		}
		p := orientation.PoseFromMatrix(s.Matrix)
		fmt.Printf("[SENS] ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f\n", p.Roll, p.Pitch, p.Yaw)
	}); err != nil {
		return err
	}
	log.Println("console: subscribed to zoom, chrome, renderer touch and sensor topics")

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
