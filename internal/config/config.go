package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-based settings for the admin server.
type Config struct {
	Environment    string
	DatabaseURL    string
	MigrationsPath string
	JWTSecret      string
	ServerAddress  string
	// PublicURL is the externally reachable base of this server, used for
	// locally stored uploads.
	PublicURL string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	AllowOvernightWindows bool

	AdminEmail        string
	AdminPasswordHash string

	UseSpaces       bool
	SpacesEndpoint  string
	SpacesRegion    string
	SpacesBucket    string
	SpacesCDNURL    string
	SpacesAccessKey string
	SpacesSecretKey string
}

// PlayerConfig holds environment-based settings for a player.
type PlayerConfig struct {
	Environment  string
	DatabaseURL  string
	DeviceIDPath string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	// MQTTBrokerURL is optional; without it the player renders to its log.
	MQTTBrokerURL string
	// MetricsAddress is optional; without it no metrics endpoint is served.
	MetricsAddress string

	PollInterval          time.Duration
	HeartbeatInterval     time.Duration
	FailureFallbackDelay  time.Duration
	DefaultItemDuration   time.Duration
	AllowOvernightWindows bool
}

// Load reads the server configuration from the environment, after applying a
// .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:    getEnv("APP_ENV", "production"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ServerAddress:  getEnv("SERVER_ADDRESS", ":8080"),
		PublicURL:      getEnv("PUBLIC_URL", "http://localhost:8080"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		UseSpaces:       os.Getenv("USE_SPACES") == "true",
		SpacesEndpoint:  os.Getenv("SPACES_ENDPOINT"),
		SpacesRegion:    os.Getenv("SPACES_REGION"),
		SpacesBucket:    os.Getenv("SPACES_BUCKET"),
		SpacesCDNURL:    os.Getenv("SPACES_CDN_URL"),
		SpacesAccessKey: os.Getenv("SPACES_ACCESS_KEY"),
		SpacesSecretKey: os.Getenv("SPACES_SECRET_KEY"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" {
		return nil, fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD_HASH are required")
	}
	if cfg.UseSpaces && (cfg.SpacesBucket == "" || cfg.SpacesEndpoint == "") {
		return nil, fmt.Errorf("SPACES_BUCKET and SPACES_ENDPOINT are required when USE_SPACES=true")
	}

	var err error
	if cfg.AllowOvernightWindows, err = getBool("ALLOW_OVERNIGHT_WINDOWS", false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPlayer reads the player configuration.
func LoadPlayer() (*PlayerConfig, error) {
	_ = godotenv.Load()

	cfg := &PlayerConfig{
		Environment:    getEnv("APP_ENV", "production"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DeviceIDPath:   DeviceIDPath(),
		RedisAddress:   getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisUsername:  os.Getenv("REDIS_USERNAME"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		MQTTBrokerURL:  os.Getenv("MQTT_BROKER_URL"),
		MetricsAddress: os.Getenv("METRICS_ADDRESS"),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.PollInterval, err = getDuration("SCHEDULE_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = getDuration("HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FailureFallbackDelay, err = getDuration("FAILURE_FALLBACK_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.DefaultItemDuration, err = getDuration("DEFAULT_ITEM_DURATION", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AllowOvernightWindows, err = getBool("ALLOW_OVERNIGHT_WINDOWS", false); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DeviceIDPath is where the player keeps its identity. It needs no other
// configuration so identity commands work before the player is set up.
func DeviceIDPath() string {
	_ = godotenv.Load()
	return getEnv("DEVICE_ID_PATH", "./device-id")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
