// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/pano_viewer/internal/app"
	"github.com/relabs-tech/pano_viewer/internal/config"
)

func main() {
	log.Println("starting pano-viewer OLED status display")

	// Load configuration
	if err := config.InitGlobal("pano_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
