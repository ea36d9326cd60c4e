package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process-level configuration, read from the environment.
// The API surface itself (entities, permissions, routes) lives in the
// runtime configuration file, see runtime.go.
type Config struct {
	App     AppConfig
	Server  ServerConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Logging LoggingConfig

	// RuntimeConfigPath points at the declarative runtime configuration file.
	RuntimeConfigPath string
}

type AppConfig struct {
	Name           string
	Version        string
	Environment    string
	AllowedOrigins []string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// SchemaTTL is the lifetime, in minutes, of cached schema exports.
	SchemaTTL int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

func Load() (*Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env doesn't exist
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "data-api-builder"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENVIRONMENT", "development"),
			AllowedOrigins: func() []string {
				v := getEnv("ALLOWED_ORIGINS", "*")
				parts := strings.Split(v, ",")
				for i := range parts {
					parts[i] = strings.TrimSpace(parts[i])
				}
				return parts
			}(),
		},
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 5000),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", ""),
			Port:      getEnvInt("REDIS_PORT", 6379),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			SchemaTTL: getEnvInt("REDIS_SCHEMA_TTL", 60),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", "data-api-builder"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			LogDir:     getEnv("LOG_DIR", "logs"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		RuntimeConfigPath: getEnv("DAB_CONFIG", "dab-config.json"),
	}

	return cfg, nil
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a redis cache was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	if c.App.Name == "" {
		errors = append(errors, "APP_NAME is required")
	}
	if c.App.Environment == "" {
		errors = append(errors, "APP_ENVIRONMENT is required")
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("APP_ENVIRONMENT must be one of: %s", strings.Join(validEnvs, ", ")))
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Redis is optional; validate only when configured
	if c.Redis.Enabled() {
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errors = append(errors, "REDIS_PORT must be between 1 and 65535")
		}
		if c.Redis.DB < 0 || c.Redis.DB > 15 {
			errors = append(errors, "REDIS_DB must be between 0 and 15")
		}
		if c.Redis.SchemaTTL <= 0 {
			errors = append(errors, "REDIS_SCHEMA_TTL must be greater than 0")
		}
	}

	// JWT is optional; without a secret every caller is anonymous
	if c.JWT.Secret != "" && len(c.JWT.Secret) < 32 {
		errors = append(errors, "JWT_SECRET must be at least 32 characters for security")
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.Logging.Level) == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	if c.Logging.MaxSize <= 0 {
		errors = append(errors, "LOG_MAX_SIZE must be greater than 0")
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, "LOG_MAX_BACKUPS cannot be negative")
	}
	if c.Logging.MaxAge < 0 {
		errors = append(errors, "LOG_MAX_AGE cannot be negative")
	}

	if c.RuntimeConfigPath == "" {
		errors = append(errors, "DAB_CONFIG is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
