package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the chat client and the dev backend.
type Config struct {
	AppName string
	AppEnv  string

	// Client settings.
	BaseURL      string
	Token        string
	UserID       string
	Role         string
	PollInterval time.Duration
	PageSize     int
	HTTPTimeout  time.Duration
	MetricsAddr  string

	// Dev backend settings.
	ServerPort          string
	DatabaseURL         string
	RedisURL            string
	JWTSecret           string
	UploadMaxMB         int
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

// HTTPAddress returns the address the dev backend should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.ServerPort, ":") {
		return c.ServerPort
	}

	return fmt.Sprintf(":%s", c.ServerPort)
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CHATSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Lokapasar Chat")
	v.SetDefault("app.env", "development")
	v.SetDefault("base.url", "http://localhost:8080")
	v.SetDefault("role", "buyer")
	v.SetDefault("poll.interval", "5s")
	v.SetDefault("page.size", 30)
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("server.port", "8080")
	v.SetDefault("jwt.secret", "lokapasar-dev-secret")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("cloudinary.folder", "lokapasar/chat")

	pollInterval, err := time.ParseDuration(v.GetString("poll.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid poll interval: %w", err)
	}
	if pollInterval < time.Second {
		return Config{}, fmt.Errorf("poll interval must be at least 1s, got %s", pollInterval)
	}

	httpTimeout, err := time.ParseDuration(v.GetString("http.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid http timeout: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		BaseURL:             strings.TrimRight(v.GetString("base.url"), "/"),
		Token:               v.GetString("token"),
		UserID:              v.GetString("user.id"),
		Role:                strings.ToLower(v.GetString("role")),
		PollInterval:        pollInterval,
		PageSize:            v.GetInt("page.size"),
		HTTPTimeout:         httpTimeout,
		MetricsAddr:         v.GetString("metrics.addr"),
		ServerPort:          v.GetString("server.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		UploadMaxMB:         v.GetInt("upload.max_mb"),
		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:    v.GetString("cloudinary.folder"),
	}

	if cfg.Role != "buyer" && cfg.Role != "seller" {
		return Config{}, fmt.Errorf("role must be buyer or seller, got %q", cfg.Role)
	}

	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 30
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	return cfg, nil
}
