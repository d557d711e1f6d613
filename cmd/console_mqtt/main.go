package main

import (
	"log"

	"github.com/relabs-tech/pano_viewer/internal/app"
	"github.com/relabs-tech/pano_viewer/internal/config"
)

func main() {
	log.Println("starting pano-viewer console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("pano_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
