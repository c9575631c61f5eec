// Package config loads the client's environment-driven configuration. A
// .env file is honored when present; explicit environment variables win.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config is everything the client reads from the environment.
type Config struct {
	// ServerURL is the backend's HTTP base, e.g. http://localhost:8080.
	ServerURL string
	// CBTSocketURL and BurnoutSocketURL are the session endpoints.
	CBTSocketURL     string
	BurnoutSocketURL string

	// DataDir holds the local credential store.
	DataDir string

	// Media capture settings.
	FFmpegPath  string
	AudioFormat string
	AudioDevice string
	VideoFormat string
	VideoDevice string
	SampleRate  int
	AudioFile   string // replay a PCM file instead of live capture

	// Voice-activity tuning.
	VADThresholdDB float64
	VADHangTime    time.Duration

	// Video toggles the camera modality for CBT sessions.
	Video bool
}

// Load reads configuration with defaults suitable for local development.
func Load(logger *zap.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := Config{
		ServerURL:        getEnv("DTA_SERVER_URL", "http://localhost:8080"),
		CBTSocketURL:     getEnv("DTA_CBT_WS_URL", "ws://localhost:8080/ws/cbt"),
		BurnoutSocketURL: getEnv("DTA_BURNOUT_WS_URL", "ws://localhost:8080/ws/burnout"),
		DataDir:          getEnv("DTA_DATA_DIR", ".dta"),
		FFmpegPath:       getEnv("DTA_FFMPEG", "ffmpeg"),
		AudioFormat:      getEnv("DTA_AUDIO_FORMAT", "pulse"),
		AudioDevice:      getEnv("DTA_AUDIO_DEVICE", "default"),
		VideoFormat:      getEnv("DTA_VIDEO_FORMAT", ""),
		VideoDevice:      getEnv("DTA_VIDEO_DEVICE", ""),
		SampleRate:       getEnvInt("DTA_SAMPLE_RATE", 16000, logger),
		AudioFile:        getEnv("DTA_AUDIO_FILE", ""),
		VADThresholdDB:   getEnvFloat("DTA_VAD_THRESHOLD_DB", -45, logger),
		VADHangTime:      getEnvDuration("DTA_VAD_HANG", 150*time.Millisecond, logger),
		Video:            getEnv("DTA_VIDEO", "") == "true",
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int, logger *zap.Logger) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("Invalid integer setting; using default",
			zap.String("key", key), zap.String("value", v))
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64, logger *zap.Logger) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("Invalid float setting; using default",
			zap.String("key", key), zap.String("value", v))
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration, logger *zap.Logger) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("Invalid duration setting; using default",
			zap.String("key", key), zap.String("value", v))
		return fallback
	}
	return d
}
