package config

import (
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string
	DBSSLMode   string

	AppPort string
	AppEnv  string

	JWTSecret         string
	InternalSecretKey string
	AllowedOrigin     string

	NATSURL            string
	OrderEventsSubject string
}

var ErrMissingDatabase = errors.New("DATABASE_URL or DB_HOST must be set")

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:           getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBHost:             os.Getenv("DB_HOST"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBName:             os.Getenv("DB_NAME"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		AppPort:            getEnv("APP_PORT", "8080"),
		AppEnv:             os.Getenv("APP_ENV"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		InternalSecretKey:  os.Getenv("INTERNAL_SECRET_KEY"),
		AllowedOrigin:      os.Getenv("CORS_ALLOWED_ORIGIN"),
		NATSURL:            os.Getenv("NATS_URL"),
		OrderEventsSubject: getEnv("ORDER_EVENTS_SUBJECT", "orders.events"),
	}

	if cfg.DatabaseURL == "" && cfg.DBHost == "" {
		return nil, ErrMissingDatabase
	}
	return cfg, nil
}

func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal("Environment variables not loaded properly: ", err)
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
