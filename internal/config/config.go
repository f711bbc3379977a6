// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const devSecret = "photoshare-dev-secret"

type Config struct {
	Env      string `env:"APP_ENV,default=development"`
	Port     string `env:"PORT,default=8080"`
	DBDriver string `env:"DB_DRIVER,default=sqlite3"`
	DBDSN    string `env:"DB_DSN,default=photoshare.db"`

	JWTSecret  string        `env:"JWT_SECRET"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,default=720h"`
	BcryptCost int           `env:"BCRYPT_COST,default=10"`

	PublicBaseURL    string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	StorageDriver    string `env:"STORAGE_DRIVER,default=disk"`
	StorageDir       string `env:"STORAGE_DIR,default=storage"`
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL"`

	S3Endpoint  string `env:"S3_ENDPOINT,default=localhost:9000"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET,default=photoshare"`
	S3UseSSL    bool   `env:"S3_USE_SSL,default=false"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=photoshare.events"`

	CORSOrigins string `env:"CORS_ORIGINS,default=*"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	OTELEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME,default=photoshare"`
}

// Load reads an optional .env file and decodes the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envdecode.Decode(&c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

// Validate checks driver names and fills derived defaults.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.StorageDriver {
	case "disk", "minio":
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		if c.Production() {
			return errors.New("config: JWT_SECRET is required in production")
		}
		c.JWTSecret = devSecret
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if c.StoragePublicURL == "" {
		if c.StorageDriver == "minio" {
			scheme := "http"
			if c.S3UseSSL {
				scheme = "https"
			}
			c.StoragePublicURL = scheme + "://" + c.S3Endpoint + "/" + c.S3Bucket
		} else {
			c.StoragePublicURL = c.PublicBaseURL + "/storage"
		}
	}
	c.StoragePublicURL = strings.TrimRight(c.StoragePublicURL, "/")
	return nil
}

func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func (c *Config) Origins() []string {
	return splitList(c.CORSOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
