package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Razorpay  RazorpayConfig  `yaml:"razorpay"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	BodyLimitMB    int      `yaml:"body_limit_mb"`
	FrontendURL    string   `yaml:"frontend_url"`
}

// DatabaseConfig holds the DSN and connection pool limits. A zero limit
// leaves the database/sql default in place.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	UserTokenTTL  time.Duration `yaml:"user_token_ttl"`
	AdminTokenTTL time.Duration `yaml:"admin_token_ttl"`
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl"`
}

// StorageConfig selects where uploaded images go. Driver is "r2" or "local".
type StorageConfig struct {
	Driver     string   `yaml:"driver"`
	LocalDir   string   `yaml:"local_dir"`
	PublicBase string   `yaml:"public_base"`
	R2         R2Config `yaml:"r2"`
}

type R2Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
	CDNBaseURL      string `yaml:"cdn_base_url"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	FromName string `yaml:"from_name"`
}

// Enabled reports whether credentials are present to actually send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && c.Password != ""
}

type RazorpayConfig struct {
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
	Currency  string `yaml:"currency"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type RateLimitConfig struct {
	AuthPerMinute int `yaml:"auth_per_minute"`
	AuthBurst     int `yaml:"auth_burst"`
}

// Defaults returns a config usable for local development.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "5000",
			AllowedOrigins: []string{"http://localhost:3000"},
			BodyLimitMB:    10,
			FrontendURL:    "http://localhost:3000",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			UserTokenTTL:  time.Hour,
			AdminTokenTTL: 6 * time.Hour,
			ResetTokenTTL: time.Hour,
		},
		Storage: StorageConfig{
			Driver:     "local",
			LocalDir:   "uploads",
			PublicBase: "/uploads",
		},
		SMTP: SMTPConfig{
			Host:     "smtp.gmail.com",
			Port:     587,
			FromName: "FireContests Support",
		},
		Razorpay:  RazorpayConfig{Currency: "INR"},
		Log:       LogConfig{Level: "info", Encoding: "json"},
		RateLimit: RateLimitConfig{AuthPerMinute: 10, AuthBurst: 5},
	}
}

// Load reads the YAML file at path (a missing file is not an error) and then
// applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		cfg.Server.FrontendURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	ints := map[string]*int{
		"DB_MAX_OPEN_CONNS": &cfg.Database.MaxOpenConns,
		"DB_MAX_IDLE_CONNS": &cfg.Database.MaxIdleConns,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	durations := map[string]*time.Duration{
		"USER_TOKEN_TTL":       &cfg.Auth.UserTokenTTL,
		"ADMIN_TOKEN_TTL":      &cfg.Auth.AdminTokenTTL,
		"RESET_TOKEN_TTL":      &cfg.Auth.ResetTokenTTL,
		"DB_CONN_MAX_LIFETIME": &cfg.Database.ConnMaxLifetime,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.LocalDir = v
	}
	if v := os.Getenv("CLOUDFLARE_ACCOUNT_ID"); v != "" {
		cfg.Storage.R2.AccountID = v
	}
	if v := os.Getenv("R2_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.R2.AccessKeyID = v
	}
	if v := os.Getenv("R2_ACCESS_KEY_SECRET"); v != "" {
		cfg.Storage.R2.AccessKeySecret = v
	}
	if v := os.Getenv("R2_BUCKET_NAME"); v != "" {
		cfg.Storage.R2.Bucket = v
	}
	if v := os.Getenv("CDN_BASE_URL"); v != "" {
		cfg.Storage.R2.CDNBaseURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT value: %w", err)
		}
		cfg.SMTP.Port = port
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		cfg.SMTP.User = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("EMAIL_FROM_NAME"); v != "" {
		cfg.SMTP.FromName = v
	}

	if v := os.Getenv("RAZORPAY_KEY_ID"); v != "" {
		cfg.Razorpay.KeyID = v
	}
	if v := os.Getenv("RAZORPAY_KEY_SECRET"); v != "" {
		cfg.Razorpay.KeySecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_ENCODING"); v != "" {
		cfg.Log.Encoding = v
	}
	if v := os.Getenv("AUTH_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AUTH_RATE_PER_MINUTE value: %w", err)
		}
		cfg.RateLimit.AuthPerMinute = n
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.Auth.ResetTokenTTL < 15*time.Minute || c.Auth.ResetTokenTTL > time.Hour {
		return fmt.Errorf("reset token ttl must be between 15m and 1h, got %s", c.Auth.ResetTokenTTL)
	}
	switch c.Storage.Driver {
	case "local":
	case "r2":
		r2 := c.Storage.R2
		if r2.AccountID == "" || r2.AccessKeyID == "" || r2.AccessKeySecret == "" || r2.Bucket == "" {
			return errors.New("r2 storage requires account id, access key and bucket")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
