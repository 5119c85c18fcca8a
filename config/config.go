package config

import (
	"fmt"
	"time"

	pkgconfig "stagepay/pkg/config"
)

type Config struct {
	DB        pkgconfig.DBConfig        `yaml:"db"`
	MQ        pkgconfig.MQConfig        `yaml:"mq"`
	Redis     pkgconfig.RedisConfig     `yaml:"redis"`
	JWT       pkgconfig.JWTConfig       `yaml:"jwt"`
	Server    pkgconfig.ServerConfig    `yaml:"server"`
	Stripe    pkgconfig.StripeConfig    `yaml:"stripe"`
	Payment   pkgconfig.PaymentConfig   `yaml:"payment"`
	Reconcile pkgconfig.ReconcileConfig `yaml:"reconcile"`
	Outbox    pkgconfig.OutboxConfig    `yaml:"outbox"`
	OTel      pkgconfig.OTelConfig      `yaml:"otel"`
	// DedupTTL bounds how long webhook and notification ids are remembered.
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

// Load reads config/<CONFIG_ENV>.yaml over config/base.yaml, then applies env overrides.
func Load(configDir string) (*Config, error) {
	var cfg Config
	if err := pkgconfig.Decode(pkgconfig.GetConfigEnv(), configDir, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（生产环境使用）
	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideStripeFromEnv(&cfg.Stripe)

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Payment.ChargeTimeout <= 0 {
		cfg.Payment.ChargeTimeout = 20 * time.Second
	}
	if cfg.Reconcile.Schedule == "" {
		cfg.Reconcile.Schedule = "@every 5m"
	}
	if cfg.Reconcile.MinAge <= 0 {
		cfg.Reconcile.MinAge = 10 * time.Minute
	}
	if cfg.Reconcile.OrphanAfter <= 0 {
		cfg.Reconcile.OrphanAfter = time.Hour
	}
	if cfg.Outbox.Interval <= 0 {
		cfg.Outbox.Interval = 2 * time.Second
	}
	if cfg.Outbox.BatchSize <= 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Outbox.MaxRetries <= 0 {
		cfg.Outbox.MaxRetries = 5
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe.secret_key is required")
	}
	return nil
}
