package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerPort     string   `yaml:"server_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	DBDriver   string `yaml:"db_driver"` // "sqlite" or "postgres"
	DBPath     string `yaml:"db_path"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	StorageKey    string `yaml:"storage_key"`
	PageSize      int    `yaml:"page_size"`
	UploadDir     string `yaml:"upload_dir"`
	ImportWorkers int    `yaml:"import_workers"`
	LogLevel      string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		ServerPort:     "8080",
		AllowedOrigins: []string{"http://localhost:3000"},
		DBDriver:       "sqlite",
		DBPath:         "roster.db",
		DBHost:         "localhost",
		DBPort:         "5432",
		DBName:         "studentdb",
		DBSSLMode:      "disable",
		StorageKey:     "students_v1",
		PageSize:       6,
		UploadDir:      "uploads",
		ImportWorkers:  runtime.NumCPU() * 2,
		LogLevel:       "info",
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then a .env file in the working directory, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBSSLMode = getEnv("DB_SSLMODE", c.DBSSLMode)
	c.StorageKey = getEnv("STORAGE_KEY", c.StorageKey)
	c.PageSize = getEnvAsInt("PAGE_SIZE", c.PageSize)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.ImportWorkers = getEnvAsInt("IMPORT_WORKERS", c.ImportWorkers)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.StorageKey == "" {
		return errors.New("STORAGE_KEY must not be empty")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.ImportWorkers < 1 {
		c.ImportWorkers = 1
	}
	return nil
}

// PostgresDSN renders the connection string for the postgres driver.
func (c *Config) PostgresDSN() string {
	return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
		" dbname=" + c.DBName + " port=" + c.DBPort + " sslmode=" + c.DBSSLMode
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
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
