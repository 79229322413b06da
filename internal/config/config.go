// Package config handles platform configuration
package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/ride-copilot/platform/internal/economics"
)

// Capture sources
const (
	CaptureADB  = "adb"
	CaptureFile = "file"
	CaptureOff  = "off"
)

// OCR modes
const (
	OCRLocal  = "local"
	OCRRemote = "remote"
	OCROff    = "off"
)

type Config struct {
	HTTP       HTTPConfig
	Capture    CaptureConfig
	OCR        OCRConfig
	Thresholds economics.ThresholdConfig
	Score      economics.ScoreSettings
	Redis      RedisConfig
	Postgres   PostgresConfig
	Kafka      KafkaConfig
	Log        LogConfig

	DedupWindow       time.Duration
	HistoryMaxEntries int
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	WSRatePerSecond float64 // screen_text messages per connection
	WSBurst         int
}

type CaptureConfig struct {
	Source    string
	ADBPath   string
	ADBSerial string
	FilePath  string
	Rate      float64 // Hz
	// Crop limits OCR to the offer card; empty means the full frame.
	Crop image.Rectangle
	// MaxHashDistance is the perceptual hash distance below which a frame counts as unchanged.
	MaxHashDistance int
}

type OCRConfig struct {
	Mode        string
	Language    string
	PageSegMode int
	Preprocess  bool // grayscale and sharpen before recognition
	RemoteAddr  string
	Timeout     time.Duration
}

type RedisConfig struct {
	URL             string // empty disables Redis thresholds
	ThresholdsKey   string
	RefreshInterval time.Duration
}

type PostgresConfig struct {
	URL           string // empty keeps history in memory
	RetentionDays int
	PruneSchedule string
	BatchSize     int
	FlushDelay    time.Duration
}

type KafkaConfig struct {
	Brokers []string // empty disables event publishing
	Topic   string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. Malformed values fall back
// to defaults; inconsistent combinations are returned as a joined error.
func Load() (*Config, error) {
	th, sc := economics.DefaultThresholds(), economics.DefaultScoreSettings()

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8000"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"localhost:*", "127.0.0.1:*"}),
			WSRatePerSecond: getEnvFloat("WS_RATE_PER_SECOND", 10),
			WSBurst:         getEnvInt("WS_BURST", 20),
		},
		Capture: CaptureConfig{
			Source:          strings.ToLower(getEnv("CAPTURE_SOURCE", CaptureOff)),
			ADBPath:         getEnv("ADB_PATH", "adb"),
			ADBSerial:       getEnv("ADB_SERIAL", ""),
			FilePath:        getEnv("CAPTURE_FILE", ""),
			Rate:            getEnvFloat("SCREEN_CAPTURE_RATE", 1.0),
			Crop:            getEnvRect("CAPTURE_CROP", image.Rectangle{}),
			MaxHashDistance: getEnvInt("CAPTURE_MAX_HASH_DISTANCE", 4),
		},
		OCR: OCRConfig{
			Mode:        strings.ToLower(getEnv("OCR_MODE", OCRLocal)),
			Language:    getEnv("OCR_LANGUAGE", "eng"),
			PageSegMode: getEnvInt("OCR_PSM", 6),
			Preprocess:  getEnvBool("OCR_PREPROCESS", true),
			RemoteAddr:  getEnv("OCR_ADDR", "localhost:50051"),
			Timeout:     getEnvDuration("OCR_TIMEOUT", 3*time.Second),
		},
		Thresholds: economics.ThresholdConfig{
			AcceptPerMile:   getEnvFloat("ACCEPT_PER_MILE", th.AcceptPerMile),
			DeclinePerMile:  getEnvFloat("DECLINE_PER_MILE", th.DeclinePerMile),
			AcceptPerHour:   getEnvFloat("ACCEPT_PER_HOUR", th.AcceptPerHour),
			DeclinePerHour:  getEnvFloat("DECLINE_PER_HOUR", th.DeclinePerHour),
			FareLow:         getEnvFloat("FARE_LOW", th.FareLow),
			FareHigh:        getEnvFloat("FARE_HIGH", th.FareHigh),
			RatingThreshold: getEnvFloat("RATING_THRESHOLD", th.RatingThreshold),
			Bonus:           getEnvFloat("BONUS", th.Bonus),
			CostPerMile:     getEnvFloat("COST_PER_MILE", th.CostPerMile),
		},
		Score: economics.ScoreSettings{
			IdealPerMile:  getEnvFloat("SCORE_IDEAL_PER_MILE", sc.IdealPerMile),
			IdealPerHour:  getEnvFloat("SCORE_IDEAL_PER_HOUR", sc.IdealPerHour),
			IdealFare:     getEnvFloat("SCORE_IDEAL_FARE", sc.IdealFare),
			PerMileScale:  getEnvFloat("SCORE_PER_MILE_SCALE", sc.PerMileScale),
			PerHourScale:  getEnvFloat("SCORE_PER_HOUR_SCALE", sc.PerHourScale),
			PerMileWeight: getEnvFloat("SCORE_PER_MILE_WEIGHT", sc.PerMileWeight),
			PerHourWeight: getEnvFloat("SCORE_PER_HOUR_WEIGHT", sc.PerHourWeight),
			FareWeight:    getEnvFloat("SCORE_FARE_WEIGHT", sc.FareWeight),
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", ""),
			ThresholdsKey:   getEnv("REDIS_THRESHOLDS_KEY", "copilot:thresholds"),
			RefreshInterval: getEnvDuration("THRESHOLDS_REFRESH", 30*time.Second),
		},
		Postgres: PostgresConfig{
			URL:           getEnv("DATABASE_URL", ""),
			RetentionDays: getEnvInt("HISTORY_RETENTION_DAYS", 90),
			PruneSchedule: getEnv("HISTORY_PRUNE_SCHEDULE", "@daily"),
			BatchSize:     getEnvInt("HISTORY_BATCH_SIZE", 20),
			FlushDelay:    getEnvDuration("HISTORY_FLUSH_DELAY", 2*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "ride-offers"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
		DedupWindow:       getEnvDuration("DEDUP_WINDOW", 30*time.Second),
		HistoryMaxEntries: getEnvInt("HISTORY_MAX_ENTRIES", 500),
	}
	return cfg, cfg.Validate()
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Capture.Source {
	case CaptureADB, CaptureOff:
	case CaptureFile:
		if c.Capture.FilePath == "" {
			errs = append(errs, errors.New("CAPTURE_FILE is required when CAPTURE_SOURCE=file"))
		}
	default:
		errs = append(errs, fmt.Errorf("CAPTURE_SOURCE must be adb, file or off, got %q", c.Capture.Source))
	}
	if c.Capture.Source != CaptureOff && c.Capture.Rate <= 0 {
		errs = append(errs, fmt.Errorf("SCREEN_CAPTURE_RATE must be > 0, got %v", c.Capture.Rate))
	}

	switch c.OCR.Mode {
	case OCRLocal, OCRRemote, OCROff:
	default:
		errs = append(errs, fmt.Errorf("OCR_MODE must be local, remote or off, got %q", c.OCR.Mode))
	}

	if c.Thresholds.DeclinePerMile > c.Thresholds.AcceptPerMile {
		errs = append(errs, fmt.Errorf("DECLINE_PER_MILE (%v) must not exceed ACCEPT_PER_MILE (%v)",
			c.Thresholds.DeclinePerMile, c.Thresholds.AcceptPerMile))
	}
	if c.Thresholds.DeclinePerHour > c.Thresholds.AcceptPerHour {
		errs = append(errs, fmt.Errorf("DECLINE_PER_HOUR (%v) must not exceed ACCEPT_PER_HOUR (%v)",
			c.Thresholds.DeclinePerHour, c.Thresholds.AcceptPerHour))
	}
	if c.Thresholds.FareLow > c.Thresholds.FareHigh {
		errs = append(errs, fmt.Errorf("FARE_LOW (%v) must not exceed FARE_HIGH (%v)",
			c.Thresholds.FareLow, c.Thresholds.FareHigh))
	}

	if c.DedupWindow < 0 {
		errs = append(errs, fmt.Errorf("DEDUP_WINDOW must not be negative, got %v", c.DedupWindow))
	}
	if c.HistoryMaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("HISTORY_MAX_ENTRIES must be > 0, got %d", c.HistoryMaxEntries))
	}
	if c.Postgres.URL != "" && c.Postgres.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("HISTORY_BATCH_SIZE must be > 0, got %d", c.Postgres.BatchSize))
	}
	if c.HTTP.WSRatePerSecond <= 0 || c.HTTP.WSBurst <= 0 {
		errs = append(errs, errors.New("WS_RATE_PER_SECOND and WS_BURST must be > 0"))
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}

// getEnvRect parses "x,y,w,h".
func getEnvRect(key string, def image.Rectangle) image.Rectangle {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return def
	}
	var n [4]int
	for i, p := range parts {
		x, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || x < 0 {
			return def
		}
		n[i] = x
	}
	if n[2] == 0 || n[3] == 0 {
		return def
	}
	return image.Rect(n[0], n[1], n[0]+n[2], n[1]+n[3])
}
