package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Card sources for resolution.
const (
	CardSourceAPI   = "api"
	CardSourceLocal = "local"
)

type Config struct {
	Server  ServerConfig
	DB      DatabaseConfig
	TCG     TCGConfig
	Gemini  GeminiConfig
	Storage StorageConfig
	Refresh RefreshConfig
}

type ServerConfig struct {
	Port             string
	Environment      string
	LogLevel         string
	CORSOrigins      []string
	FrontendDistPath string
}

type DatabaseConfig struct {
	Path string
}

type TCGConfig struct {
	APIKey           string
	BaseURL          string
	RateLimitPerHour int
	CacheTTL         time.Duration
	CacheSize        int
	CardSource       string
	DataDir          string
	DownloadData     bool
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type StorageConfig struct {
	ScannedImagesDir string
}

type RefreshConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	StaleAfter time.Duration
}

// IsProduction reports whether gin should run in release mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// UseLocalCards reports whether resolution should search the local card
// index instead of the Pokemon TCG API.
func (c *Config) UseLocalCards() bool {
	return c.TCG.CardSource == CardSourceLocal
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	rateLimit, err := getEnvInt("TCG_RATE_LIMIT_PER_HOUR", 100)
	if err != nil {
		return nil, err
	}
	cacheSize, err := getEnvInt("TCG_CACHE_SIZE", 512)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvDuration("TCG_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	refreshInterval, err := getEnvDuration("REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshStaleAfter, err := getEnvDuration("REFRESH_STALE_AFTER", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshBatch, err := getEnvInt("REFRESH_BATCH_SIZE", 20)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			Environment:      getEnv("ENVIRONMENT", "development"),
			LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
			CORSOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
			FrontendDistPath: getEnv("FRONTEND_DIST_PATH", ""),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./card_resolver.db"),
		},
		TCG: TCGConfig{
			APIKey:           getEnv("POKEMON_TCG_API_KEY", ""),
			BaseURL:          getEnv("POKEMON_TCG_BASE_URL", ""),
			RateLimitPerHour: rateLimit,
			CacheTTL:         cacheTTL,
			CacheSize:        cacheSize,
			CardSource:       strings.ToLower(getEnv("CARD_SOURCE", CardSourceAPI)),
			DataDir:          getEnv("POKEMON_DATA_DIR", "./data"),
			DownloadData:     getEnv("POKEMON_DATA_DOWNLOAD", "true") == "true",
		},
		Gemini: GeminiConfig{
			APIKey: googleAPIKey(),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Storage: StorageConfig{
			ScannedImagesDir: getEnv("SCANNED_IMAGES_DIR", "./data/scanned_images"),
		},
		Refresh: RefreshConfig{
			Enabled:    getEnv("REFRESH_ENABLED", "true") == "true",
			Interval:   refreshInterval,
			BatchSize:  refreshBatch,
			StaleAfter: refreshStaleAfter,
		},
	}

	switch cfg.TCG.CardSource {
	case CardSourceAPI, CardSourceLocal:
	default:
		return nil, fmt.Errorf("invalid CARD_SOURCE %q: want %q or %q", cfg.TCG.CardSource, CardSourceAPI, CardSourceLocal)
	}
	if cfg.TCG.RateLimitPerHour <= 0 {
		return nil, fmt.Errorf("TCG_RATE_LIMIT_PER_HOUR must be positive")
	}

	return cfg, nil
}

// googleAPIKey prefers GOOGLE_API_KEY and falls back to reading the file
// named by GOOGLE_API_KEY_FILE.
func googleAPIKey() string {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return key
	}
	if keyPath := os.Getenv("GOOGLE_API_KEY_FILE"); keyPath != "" {
		if data, err := os.ReadFile(keyPath); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
