package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Shared Secret für das OAuth-Gateway, das /auth/signin aufruft.
	GatewayAPIKey string `envconfig:"GATEWAY_API_KEY" required:"true"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"720h"`

	// Zwei Credential-Stufen: Upload-Keys dürfen nur schreiben,
	// Service-Keys dürfen zusätzlich löschen und listen.
	S3URL           string `envconfig:"S3_URL" required:"true"`
	S3Region        string `envconfig:"S3_REGION" required:"true"`
	S3Bucket        string `envconfig:"S3_BUCKET" required:"true"`
	S3UploadKey     string `envconfig:"S3_UPLOAD_KEY" required:"true"`
	S3UploadSecret  string `envconfig:"S3_UPLOAD_SECRET" required:"true"`
	S3ServiceKey    string `envconfig:"S3_SERVICE_KEY" required:"true"`
	S3ServiceSecret string `envconfig:"S3_SERVICE_SECRET" required:"true"`

	// Zeitplan für den Orphan-Sweep (Objekte ohne Paper-Datensatz).
	SweepSchedule string `envconfig:"SWEEP_SCHEDULE" default:"30 3 * * *"`
	SweepEnabled  bool   `envconfig:"SWEEP_ENABLED" default:"true"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// PublicObjectURL baut den öffentlichen Abruf-Link für einen Objekt-Key.
func (c *Config) PublicObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.S3URL, "/"), c.S3Bucket, key)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
