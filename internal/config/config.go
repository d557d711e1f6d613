package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sensor sources understood by SENSOR_SOURCE.
const (
	SourceNone    = "none"
	SourceMock    = "mock"
	SourceIMU     = "imu"
	SourceHeading = "heading"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDViewer   string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDTouch    string
	MQTTClientIDDisplay  string

	// Topics into the viewer
	TopicSensor    string // rotation samples
	TopicTouch     string // touch events
	TopicImage     string // image path to load
	TopicLifecycle string // "pause" / "resume"
	TopicFOV       string // renderer reports its field of view

	// Topics out of the viewer
	TopicCamera     string // column-major camera matrix
	TopicZoom       string
	TopicChrome     string // tap toggles window chrome
	TopicMultiTouch string // 2+ finger events for the renderer's pinch-zoom

	// Sensor
	SensorSource         string // none, mock, imu, heading
	SensorSampleInterval int    // milliseconds
	ViewerLocalSensor    bool   // viewer reads the source itself instead of TopicSensor

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	IMUGyroLSB   float64 // raw counts per °/s
	IMUCalibrate bool

	// Serial compass
	HeadingSerialPort string
	HeadingBaudRate   int

	// Image
	ImagePath       string // loaded on startup when set
	MaxTextureWidth int
	AspectTolerance float64

	// View tuning
	DefaultFOV     float32
	ZoomFactor     float32
	DegPerPixel    float32
	BaseYawDeg     float32
	NoSensorYawDeg float32
	HorizonEpsilon float32
	HeadingEpsilon float32

	// Gesture + inertia tuning
	FlickWindowMS        int
	FlickMinDisplacement float32
	InertiaLaunchScale   float32
	InertiaFriction      float32
	InertiaStopVelocity  float32
	InertiaYawScale      float32
	InertiaTickMS        int

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

// globalConfig is only reachable through InitGlobal and Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every key at its stock value.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDViewer:   "pano-viewer",
		MQTTClientIDProducer: "pano-sensor",
		MQTTClientIDConsole:  "pano-console",
		MQTTClientIDTouch:    "pano-touch",
		MQTTClientIDDisplay:  "pano-display",

		TopicSensor:     "pano/sensor/rotation",
		TopicTouch:      "pano/input/touch",
		TopicImage:      "pano/image/load",
		TopicLifecycle:  "pano/lifecycle",
		TopicFOV:        "pano/renderer/fov",
		TopicCamera:     "pano/renderer/camera",
		TopicZoom:       "pano/renderer/zoom",
		TopicChrome:     "pano/ui/chrome",
		TopicMultiTouch: "pano/renderer/touch",

		SensorSource:         SourceMock,
		SensorSampleInterval: 20,

		IMUSPIDevice: "/dev/spidev0.0",
		IMUCSPin:     "8",
		IMUGyroLSB:   131,

		HeadingSerialPort: "/dev/ttyUSB0",
		HeadingBaudRate:   4800,

		MaxTextureWidth: 4096,
		AspectTolerance: 0.01,

		DefaultFOV:     70,
		ZoomFactor:     0.7,
		DegPerPixel:    0.1,
		HorizonEpsilon: 0.1,
		HeadingEpsilon: 0.1,

		FlickWindowMS:        300,
		FlickMinDisplacement: 10,
		InertiaLaunchScale:   0.3,
		InertiaFriction:      0.92,
		InertiaStopVelocity:  0.5,
		InertiaYawScale:      0.1,
		InertiaTickMS:        16,

		ConsoleLogInterval: 500,
		WebServerPort:      8080,

		DisplayI2CBus:         "",
		DisplayUpdateInterval: 200,
	}
}

// Load reads the configuration file and returns a Config struct. Keys not in
// the file keep their Default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines from r.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_VIEWER":
		c.MQTTClientIDViewer = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_TOUCH":
		c.MQTTClientIDTouch = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SENSOR":
		c.TopicSensor = value
	case "TOPIC_TOUCH":
		c.TopicTouch = value
	case "TOPIC_IMAGE":
		c.TopicImage = value
	case "TOPIC_LIFECYCLE":
		c.TopicLifecycle = value
	case "TOPIC_FOV":
		c.TopicFOV = value
	case "TOPIC_CAMERA":
		c.TopicCamera = value
	case "TOPIC_ZOOM":
		c.TopicZoom = value
	case "TOPIC_CHROME":
		c.TopicChrome = value
	case "TOPIC_MULTITOUCH":
		c.TopicMultiTouch = value

	// Sensor
	case "SENSOR_SOURCE":
		switch value {
		case SourceNone, SourceMock, SourceIMU, SourceHeading:
			c.SensorSource = value
		default:
			return fmt.Errorf("SENSOR_SOURCE must be one of none, mock, imu, heading, got %q", value)
		}
	case "SENSOR_SAMPLE_INTERVAL":
		c.SensorSampleInterval, err = parseInt(key, value)
	case "VIEWER_LOCAL_SENSOR":
		c.ViewerLocalSensor, err = parseBool(key, value)

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_GYRO_LSB":
		c.IMUGyroLSB, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_LSB %q: %w", value, err)
		}
	case "IMU_CALIBRATE":
		c.IMUCalibrate, err = parseBool(key, value)

	// Serial compass
	case "HEADING_SERIAL_PORT":
		c.HeadingSerialPort = value
	case "HEADING_BAUD_RATE":
		c.HeadingBaudRate, err = parseInt(key, value)

	// Image
	case "IMAGE_PATH":
		c.ImagePath = value
	case "MAX_TEXTURE_WIDTH":
		c.MaxTextureWidth, err = parseInt(key, value)
	case "ASPECT_TOLERANCE":
		c.AspectTolerance, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid ASPECT_TOLERANCE %q: %w", value, err)
		}

	// View tuning
	case "DEFAULT_FOV":
		c.DefaultFOV, err = parseFloat32(key, value)
	case "ZOOM_FACTOR":
		c.ZoomFactor, err = parseFloat32(key, value)
	case "DEG_PER_PIXEL":
		c.DegPerPixel, err = parseFloat32(key, value)
	case "BASE_YAW_DEG":
		c.BaseYawDeg, err = parseFloat32(key, value)
	case "NO_SENSOR_YAW_DEG":
		c.NoSensorYawDeg, err = parseFloat32(key, value)
	case "HORIZON_EPSILON":
		c.HorizonEpsilon, err = parseFloat32(key, value)
	case "HEADING_EPSILON":
		c.HeadingEpsilon, err = parseFloat32(key, value)

	// Gesture + inertia tuning
	case "FLICK_WINDOW_MS":
		c.FlickWindowMS, err = parseInt(key, value)
	case "FLICK_MIN_DISPLACEMENT":
		c.FlickMinDisplacement, err = parseFloat32(key, value)
	case "INERTIA_LAUNCH_SCALE":
		c.InertiaLaunchScale, err = parseFloat32(key, value)
	case "INERTIA_FRICTION":
		c.InertiaFriction, err = parseFloat32(key, value)
	case "INERTIA_STOP_VELOCITY":
		c.InertiaStopVelocity, err = parseFloat32(key, value)
	case "INERTIA_YAW_SCALE":
		c.InertiaYawScale, err = parseFloat32(key, value)
	case "INERTIA_TICK_MS":
		c.InertiaTickMS, err = parseInt(key, value)

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		c.ConsoleLogInterval, err = parseInt(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat32(key, value string) (float32, error) {
	v, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return float32(v), nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// validate checks required fields and tuning ranges.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.DefaultFOV <= 0 {
		return fmt.Errorf("DEFAULT_FOV must be positive, got %v", c.DefaultFOV)
	}
	if c.InertiaFriction <= 0 || c.InertiaFriction >= 1 {
		return fmt.Errorf("INERTIA_FRICTION must be in (0, 1), got %v", c.InertiaFriction)
	}
	if c.InertiaStopVelocity <= 0 {
		return fmt.Errorf("INERTIA_STOP_VELOCITY must be positive, got %v", c.InertiaStopVelocity)
	}
	if c.InertiaTickMS <= 0 {
		return fmt.Errorf("INERTIA_TICK_MS must be positive, got %d", c.InertiaTickMS)
	}
	if c.FlickWindowMS <= 0 {
		return fmt.Errorf("FLICK_WINDOW_MS must be positive, got %d", c.FlickWindowMS)
	}
	if c.HorizonEpsilon <= 0 || c.HeadingEpsilon <= 0 {
		return fmt.Errorf("HORIZON_EPSILON and HEADING_EPSILON must be positive")
	}
	if c.SensorSampleInterval <= 0 {
		return fmt.Errorf("SENSOR_SAMPLE_INTERVAL must be positive, got %d", c.SensorSampleInterval)
	}
	if c.SensorSource == SourceHeading && c.HeadingBaudRate <= 0 {
		return fmt.Errorf("HEADING_BAUD_RATE is required for the heading source")
	}
	if c.MaxTextureWidth <= 0 {
		return fmt.Errorf("MAX_TEXTURE_WIDTH must be positive, got %d", c.MaxTextureWidth)
	}
	if c.AspectTolerance < 0 {
		return fmt.Errorf("ASPECT_TOLERANCE must not be negative, got %v", c.AspectTolerance)
	}
	return nil
}

// FlickWindow is FLICK_WINDOW_MS as a duration.
func (c *Config) FlickWindow() time.Duration {
	return time.Duration(c.FlickWindowMS) * time.Millisecond
}

// InertiaTick is INERTIA_TICK_MS as a duration.
func (c *Config) InertiaTick() time.Duration {
	return time.Duration(c.InertiaTickMS) * time.Millisecond
}

// InitGlobal initializes the global configuration from file. Only the first
// call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
