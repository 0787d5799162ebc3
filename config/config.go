package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config holds everything read from the environment.
type Config struct {
	DSN           string
	Port          string
	JWTSecret     string
	LogLevel      string
	AdminEmail    string
	AdminPassword string
}

// Load reads the .env file if present, then the process environment.
func Load(log *slog.Logger) Config {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using system environment variables")
	}
	cfg := Config{
		DSN:           os.Getenv("DB_DSN"),
		Port:          os.Getenv("PORT"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	return cfg
}

// Connect opens the Postgres handle. The caller owns it and passes it down;
// there is no package-level DB.
func Connect(cfg Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
}
