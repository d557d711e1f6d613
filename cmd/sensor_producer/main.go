// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/pano_viewer/internal/app"
	"github.com/relabs-tech/pano_viewer/internal/config"
)

func main() {
	configPath := flag.String("config", "./pano_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting pano-viewer sensor producer")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Note: SENSOR_SOURCE=imu needs root for SPI access (sudo ./sensor_producer)")

	if err := app.RunSensorProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
