// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// HeadingOptions selects the serial compass port.
type HeadingOptions struct {
	PortName string // /dev/serial0, /dev/ttyUSB0, ...
	BaudRate uint
}

type headingSource struct {
	r     *bufio.Reader
	pitch float64
	now   func() time.Time
}

// NewHeadingSource opens a serial compass that speaks NMEA 0183 and returns a
// Source for a device held upright on a tripod: heading comes from HDT or HDG
// sentences, pitch and roll are fixed at level.
func NewHeadingSource(opts HeadingOptions) (Source, io.Closer, error) {
	serialOpts := serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("open heading port %s: %w", opts.PortName, err)
	}
	log.Printf("heading: serial port opened on %s at %d baud", opts.PortName, opts.BaudRate)

	return newHeadingSource(port), port, nil
}

func newHeadingSource(r io.Reader) *headingSource {
	return &headingSource{r: bufio.NewReader(r), pitch: 90, now: time.Now}
}

// Next blocks until the next heading sentence arrives.
func (s *headingSource) Next() (Sample, error) {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return Sample{}, fmt.Errorf("heading read: %w", err)
		}

		heading, ok := ParseHeading(line)
		if !ok {
			continue
		}
		pose := Pose{Pitch: s.pitch, Yaw: heading}
		return Sample{Matrix: MatrixFromPose(pose), Time: s.now()}, nil
	}
}

// ParseHeading extracts a heading in degrees from an NMEA HDT or HDG line.
func ParseHeading(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return 0, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy compass or partial sentences
		return 0, false
	}

	switch sentence.DataType() {
	case nmea.TypeHDT:
		return sentence.(nmea.HDT).Heading, true
	case nmea.TypeHDG:
		m := sentence.(nmea.HDG)
		h := m.Heading
		if m.VariationDirection == nmea.East {
			h += m.Variation
		} else if m.VariationDirection == nmea.West {
			h -= m.Variation
		}
		return h, true
	default:
		return 0, false
	}
}
