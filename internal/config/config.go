package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when CONFIG_PATH is not set
const DefaultConfigPath = "config.yaml"

// Storage drivers
const (
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Redis     RedisConfig     `yaml:"redis"`
	Geocode   GeocodeConfig   `yaml:"geocode"`
	Search    SearchConfig    `yaml:"search"`
	AWS       AWSConfig       `yaml:"aws"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects the storage backend
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// FirestoreConfig holds Firebase project configuration
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// RedisConfig holds the optional shared cache configuration
type RedisConfig struct {
	URL string `yaml:"url"`
}

// GeocodeConfig holds postal code resolution configuration
type GeocodeConfig struct {
	ViaCEPURL         string        `yaml:"viacep_url"`
	NominatimURL      string        `yaml:"nominatim_url"`
	UserAgent         string        `yaml:"user_agent"`
	Country           string        `yaml:"country"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	PacingInterval    time.Duration `yaml:"pacing_interval"`
	ResolveTimeout    time.Duration `yaml:"resolve_timeout"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
	FallbackLatitude  float64       `yaml:"fallback_latitude"`
	FallbackLongitude float64       `yaml:"fallback_longitude"`
}

// SearchConfig holds search configuration
type SearchConfig struct {
	BatchSize       int     `yaml:"batch_size"`
	DefaultRadiusKm float64 `yaml:"default_radius_km"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"` // S3-compatible storage, uses path-style addressing
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for every unset field
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{Driver: DriverPostgres},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "partners",
			SSLMode: "disable",
		},
		Geocode: GeocodeConfig{
			ViaCEPURL:         "https://viacep.com.br/ws",
			NominatimURL:      "https://nominatim.openstreetmap.org",
			UserAgent:         "Encontre um Partner/1.0",
			Country:           "Brasil",
			CacheTTL:          30 * 24 * time.Hour,
			PacingInterval:    time.Second,
			ResolveTimeout:    15 * time.Second,
			HTTPTimeout:       10 * time.Second,
			FallbackLatitude:  -23.5505,
			FallbackLongitude: -46.6333,
		},
		Search: SearchConfig{
			BatchSize:       10,
			DefaultRadiusKm: 100,
		},
		JWT: JWTConfig{TTL: 30 * 24 * time.Hour},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would break the service at runtime
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverFirestore:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverFirestore && c.Firestore.ProjectID == "" && c.Firestore.CredentialsFile == "" {
		return fmt.Errorf("firestore requires project_id or credentials_file")
	}
	if c.Search.BatchSize <= 0 {
		return fmt.Errorf("search.batch_size must be positive, got %d", c.Search.BatchSize)
	}
	if c.Search.DefaultRadiusKm <= 0 {
		return fmt.Errorf("search.default_radius_km must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := envInt("SERVER_PORT"); ok {
		cfg.Server.Port = v
	}
	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Firestore.ProjectID, "FIREBASE_PROJECT_ID")
	setString(&cfg.Firestore.CredentialsFile, "FIREBASE_CREDENTIALS_PATH")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.AWS.Region, "AWS_REGION")
	setString(&cfg.AWS.S3Bucket, "S3_BUCKET")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
