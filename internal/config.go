package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full application configuration, loaded from environment
// variables with an optional .env file for development.
type Config struct {
	Env      string
	LogLevel string
	Port     int

	Mongo MongoConfig
	VNPay VNPayConfig
	SMTP  SMTPConfig
	NATS  NATSConfig
	Sweep SweepConfig
}

// MongoConfig holds document store connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// VNPayConfig holds payment gateway merchant credentials.
type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// SMTPConfig holds outbound mail settings. An empty host disables mail.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NATSConfig holds event broker settings. An empty URL disables events.
type NATSConfig struct {
	URL string
}

// SweepConfig holds the maintenance sweep settings.
type SweepConfig struct {
	Interval time.Duration
}

// NewConfig loads configuration. A .env file in the working directory is
// applied first; real environment variables win over it.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 3000)
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "commerce")
	v.SetDefault("vnpay_pay_url", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	v.SetDefault("smtp_port", 1025)
	v.SetDefault("smtp_from", "noreply@commerce.local")
	v.SetDefault("sweep_interval", "30m")

	cfg := &Config{
		Env:      v.GetString("env"),
		LogLevel: v.GetString("log_level"),
		Port:     v.GetInt("port"),
		Mongo: MongoConfig{
			URI:      v.GetString("mongo_uri"),
			Database: v.GetString("mongo_database"),
		},
		VNPay: VNPayConfig{
			TmnCode:    v.GetString("vnpay_tmn_code"),
			HashSecret: v.GetString("vnpay_hash_secret"),
			PayURL:     v.GetString("vnpay_pay_url"),
			ReturnURL:  v.GetString("vnpay_return_url"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp_host"),
			Port:     v.GetInt("smtp_port"),
			Username: v.GetString("smtp_username"),
			Password: v.GetString("smtp_password"),
			From:     v.GetString("smtp_from"),
		},
		NATS: NATSConfig{
			URL: v.GetString("nats_url"),
		},
		Sweep: SweepConfig{
			Interval: v.GetDuration("sweep_interval"),
		},
	}

	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("invalid ENV %q: must be dev or prod", cfg.Env)
	}

	if cfg.Env == "prod" && cfg.VNPay.HashSecret == "" {
		return nil, fmt.Errorf("VNPAY_HASH_SECRET must be set in production")
	}

	return cfg, nil
}
