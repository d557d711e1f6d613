package app

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/pano_viewer/internal/config"
	"github.com/relabs-tech/pano_viewer/internal/orientation"
)

// RunSensorProducer reads the configured orientation source and publishes
// rotation samples for the viewer.
func RunSensorProducer() error {
	log.Println("starting panorama sensor producer")

	cfg := config.Get()

	src, closer, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting publish loop")

	ticker := time.NewTicker(sampleInterval(cfg))
	defer ticker.Stop()

	pub := mqttPublisher{client: client, prefix: "producer"}
	published := 0
	for range ticker.C {
		s, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return err
			}
			log.Printf("error reading orientation source: %v", err)
			continue
		}

		payload, err := encodeSample(s)
		if err != nil {
			log.Printf("json marshal error (sample): %v", err)
			continue
		}
		pub.Publish(cfg.TopicSensor, payload)

		published++
		if published%500 == 0 {
			pose := orientation.PoseFromMatrix(s.Matrix)
			log.Printf("published %d samples, last ROLL=%.1f PITCH=%.1f YAW=%.1f", published, pose.Roll, pose.Pitch, pose.Yaw)
		}
	}
	return nil
}

func encodeSample(s orientation.Sample) ([]byte, error) {
	return json.Marshal(orientation.NewSampleMessage(s))
}
