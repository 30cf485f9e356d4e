package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64

	// Guidance loop timing
	TickInterval      time.Duration
	StabilityWindow   time.Duration
	StatePushInterval time.Duration
	PerfectSustain    time.Duration
	CountdownStart    int
	CountdownTick     time.Duration

	// Voice feedback
	VoiceEnabled      bool
	VoiceMinInterval  time.Duration
	VoiceLocale       string
	SpeechCommand     string

	// Collaborators
	CascadeDir   string
	SegmenterURL string

	// Camera / preview geometry
	CameraDevice int
	CameraFPS    int
	ScreenWidth  float64
	ScreenHeight float64
	SensorAspect float64

	// Output
	PhotoLibraryDir  string
	ThresholdProfile string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// VisibleHeightFactor compensates for camera-preview cropping: when the screen
// is narrower than the sensor's native frame, part of the vertical field of
// view is invisible, so detector-space face heights must be rescaled before
// being compared against screen-relative thresholds.
func (c *Config) VisibleHeightFactor() float64 {
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 || c.SensorAspect <= 0 {
		return 1.0
	}
	factor := (c.ScreenWidth / c.SensorAspect) / c.ScreenHeight
	if factor <= 0 || factor > 1.0 {
		return 1.0
	}
	return factor
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "127.0.0.1"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 20*1024*1024), // 20MB

		TickInterval:      parseDurationOrDefault("TICK_INTERVAL", 300*time.Millisecond),
		StabilityWindow:   parseDurationOrDefault("STABILITY_WINDOW", time.Second),
		StatePushInterval: parseDurationOrDefault("STATE_PUSH_INTERVAL", 3*time.Second),
		PerfectSustain:    parseDurationOrDefault("PERFECT_SUSTAIN", time.Second),
		CountdownStart:    int(parseIntOrDefault("COUNTDOWN_START", 3)),
		CountdownTick:     parseDurationOrDefault("COUNTDOWN_TICK", time.Second),

		VoiceEnabled:     parseBoolOrDefault("VOICE_ENABLED", true),
		VoiceMinInterval: parseDurationOrDefault("VOICE_MIN_INTERVAL", 4*time.Second),
		VoiceLocale:      getEnvOrDefault("VOICE_LOCALE", "en-US"),
		SpeechCommand:    getEnvOrDefault("SPEECH_COMMAND", "espeak"),

		CascadeDir:   getEnvOrDefault("CASCADE_DIR", "cascade"),
		SegmenterURL: os.Getenv("SEGMENTER_URL"),

		CameraDevice: int(parseIntOrDefault("CAMERA_DEVICE", -1)),
		CameraFPS:    int(parseIntOrDefault("CAMERA_FPS", 30)),
		ScreenWidth:  parseFloatOrDefault("SCREEN_WIDTH", 0),
		ScreenHeight: parseFloatOrDefault("SCREEN_HEIGHT", 0),
		SensorAspect: parseFloatOrDefault("SENSOR_ASPECT", 4.0/3.0),

		PhotoLibraryDir:  getEnvOrDefault("PHOTO_LIBRARY_DIR", "photos"),
		ThresholdProfile: getEnvOrDefault("THRESHOLD_PROFILE", "default"),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %s)", cfg.RequestTimeout)
	}
	if cfg.TickInterval <= 0 || cfg.StabilityWindow <= 0 || cfg.PerfectSustain <= 0 {
		return nil, fmt.Errorf("guidance intervals must be > 0 (got tick=%s, stability=%s, sustain=%s)",
			cfg.TickInterval, cfg.StabilityWindow, cfg.PerfectSustain)
	}
	if cfg.CountdownStart < 1 {
		return nil, fmt.Errorf("COUNTDOWN_START must be >= 1 (got %d)", cfg.CountdownStart)
	}
	if cfg.ThresholdProfile != "default" && cfg.ThresholdProfile != "strict" {
		return nil, fmt.Errorf("invalid THRESHOLD_PROFILE: %q", cfg.ThresholdProfile)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
