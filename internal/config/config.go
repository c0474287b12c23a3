package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/models"
)

type Config struct {
	HTTP_ADDR      string
	LOG_LEVEL      string
	DB_HOST        string
	DB_PORT        string
	DB_USER        string
	DB_PASSWORD    string
	DB_NAME        string
	CART_CACHE     string
	JWT_SECRET     string
	REFRESH_SECRET string
	KAFKA_ADDRESS  string
	ES_URL         string
	ES_USER        string
	ES_PASSWORD    string
	ES_INDEX       string

	SHEETS_API_KEY string
	SPREADSHEET_ID string
	SHEET_NAME     string

	DADATA_KEY    string
	WAREHOUSE_LAT float64
	WAREHOUSE_LON float64
	DELIVERY_RATE int

	RESEND_API_KEY string
	FROM_EMAIL     string
	TO_EMAIL       string

	TELEGRAM_BOT_TOKEN string
	TELEGRAM_CHAT_ID   string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		HTTP_ADDR:      envDefault("HTTP_ADDR", ":8080"),
		LOG_LEVEL:      envDefault("LOG_LEVEL", "info"),
		DB_HOST:        os.Getenv("DB_HOST"),
		DB_PORT:        os.Getenv("DB_PORT"),
		DB_USER:        os.Getenv("DB_USER"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        os.Getenv("DB_NAME"),
		CART_CACHE:     envDefault("CART_CACHE", "cart_cache.db"),
		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		REFRESH_SECRET: os.Getenv("REFRESH_SECRET"),
		KAFKA_ADDRESS:  os.Getenv("KAFKA_ADDRESS"),
		ES_URL:         os.Getenv("ES_URL"),
		ES_USER:        os.Getenv("ES_USER"),
		ES_PASSWORD:    os.Getenv("ES_PASSWORD"),
		ES_INDEX:       envDefault("ES_INDEX", "products"),

		SHEETS_API_KEY: os.Getenv("SHEETS_API_KEY"),
		SPREADSHEET_ID: os.Getenv("SPREADSHEET_ID"),
		SHEET_NAME:     envDefault("SHEET_NAME", "Материалы"),

		DADATA_KEY:    os.Getenv("DADATA_KEY"),
		WAREHOUSE_LAT: envFloat("WAREHOUSE_LAT", 0),
		WAREHOUSE_LON: envFloat("WAREHOUSE_LON", 0),
		DELIVERY_RATE: envInt("DELIVERY_RATE", 7),

		RESEND_API_KEY: os.Getenv("RESEND_API_KEY"),
		FROM_EMAIL:     envDefault("FROM_EMAIL", "onboarding@resend.dev"),
		TO_EMAIL:       os.Getenv("TO_EMAIL"),

		TELEGRAM_BOT_TOKEN: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TELEGRAM_CHAT_ID:   os.Getenv("TELEGRAM_CHAT_ID"),
	}

	return config, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to db: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.RefreshToken{},
		&models.CartItem{},
		&models.Order{},
		&models.ContactMessage{},
		&models.Partner{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
