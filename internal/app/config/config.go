// Package config aggregates the process-level settings read from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// Model backends.
const (
	BackendONNX   = "onnx"
	BackendVision = "vision"
)

// Config is the server configuration.
type Config struct {
	Port     string
	LogLevel slog.Level

	Profile      entity.Profile
	ModelBackend string

	MaxImageBytes int64
	ResultDir     string

	CameraDevice string
	CameraWidth  int
	CameraHeight int

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	CORSOrigins []string

	GeminiEnabled   bool
	GeminiModel     string
	GeminiTimeout   time.Duration
	GeminiRateLimit int // requests per minute
	AdviceCacheTTL  time.Duration
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		ModelBackend:    strings.ToLower(getEnv("MODEL_BACKEND", BackendONNX)),
		MaxImageBytes:   int64(getInt("MAX_IMAGE_BYTES", usecase.MaxImageSize)),
		ResultDir:       getEnv("RESULT_DIR", "results"),
		CameraDevice:    os.Getenv("CAMERA_DEVICE"),
		CameraWidth:     getInt("CAMERA_WIDTH", 1280),
		CameraHeight:    getInt("CAMERA_HEIGHT", 720),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SessionTTL:      getDuration("SESSION_TTL", 2*time.Hour),
		CookieSecure:    getBool("COOKIE_SECURE", false),
		GeminiEnabled:   getBool("GEMINI_ENABLED", false),
		GeminiModel:     os.Getenv("GEMINI_MODEL"),
		GeminiTimeout:   getDuration("GEMINI_TIMEOUT", 30*time.Second),
		GeminiRateLimit: getInt("GEMINI_RATE_LIMIT", 10),
		AdviceCacheTTL:  getDuration("ADVICE_CACHE_TTL", 24*time.Hour),
	}

	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	name := getEnv("PROFILE", entity.DefaultProfileName)
	profile, ok := entity.LookupProfile(name)
	if !ok {
		return Config{}, fmt.Errorf("unknown PROFILE %q (available: %s)", name, strings.Join(entity.ProfileNames(), ", "))
	}
	th, overridden, err := thresholdOverrides(profile.EffectiveThresholds())
	if err != nil {
		return Config{}, err
	}
	if overridden {
		profile = profile.WithThresholds(th)
	}
	cfg.Profile = profile

	switch cfg.ModelBackend {
	case BackendONNX, BackendVision:
	default:
		return Config{}, fmt.Errorf("unknown MODEL_BACKEND %q", cfg.ModelBackend)
	}
	if cfg.MaxImageBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}
	if cfg.GeminiRateLimit <= 0 {
		return Config{}, fmt.Errorf("GEMINI_RATE_LIMIT must be positive")
	}
	return cfg, nil
}

// thresholdOverrides applies CONFIDENCE_THRESHOLD and IOU_THRESHOLD on top of base.
func thresholdOverrides(base entity.Thresholds) (entity.Thresholds, bool, error) {
	th, overridden := base, false
	for _, o := range []struct {
		key string
		dst *float64
	}{
		{"CONFIDENCE_THRESHOLD", &th.Confidence},
		{"IOU_THRESHOLD", &th.IoU},
	} {
		raw := os.Getenv(o.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return base, false, fmt.Errorf("invalid %s %q: %w", o.key, raw, err)
		}
		*o.dst = v
		overridden = true
	}
	if err := th.Validate(); err != nil {
		return base, false, err
	}
	return th, overridden, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}
