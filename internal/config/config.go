package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Database    DatabaseConfig
	Extractor   ExtractorConfig
	Recognition RecognitionConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ExtractorConfig struct {
	URL string // face descriptor service, defaults to http://localhost:8000
}

type RecognitionConfig struct {
	Dim      int     // descriptor dimensionality (default 128)
	Accept   float64 // minimum score for a candidate to qualify
	AutoMark float64 // minimum score for unattended attendance marking
	TopN     int     // ranked candidates returned per recognition call
}

// thresholdsFile mirrors the embedded thresholds.yaml.
type thresholdsFile struct {
	Recognition struct {
		Accept   float64 `yaml:"accept"`
		AutoMark float64 `yaml:"auto_mark"`
		TopN     int     `yaml:"top_n"`
	} `yaml:"recognition"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var thresholds thresholdsFile
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// Embedded file, so this should never happen in practice.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Extractor: ExtractorConfig{
			URL: os.Getenv("EXTRACTOR_URL"),
		},
		Recognition: RecognitionConfig{
			Dim:      envInt("FACE_DESCRIPTOR_DIM", 128),
			Accept:   envFloat("FACE_RECOGNITION_THRESHOLD", thresholds.Recognition.Accept),
			AutoMark: envFloat("FACE_AUTO_MARK_THRESHOLD", thresholds.Recognition.AutoMark),
			TopN:     envInt("FACE_MATCH_TOP_N", thresholds.Recognition.TopN),
		},
	}
}
