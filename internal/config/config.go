// Package config は環境変数からアプリケーション設定を読み込みます。
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	HTTP       HTTPConfig
	DB         DBConfig
	JWT        JWTConfig
	Pagination PaginationConfig
	Redis      RedisConfig
	Mail       MailConfig
}

type HTTPConfig struct {
	Port            string        `env:"HTTP_PORT" env-default:"8080"`
	GinMode         string        `env:"GIN_MODE" env-default:"release"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	AllowOrigins    []string      `env:"CORS_ALLOW_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
}

type DBConfig struct {
	User            string        `env:"DB_USER" env-required:"true"`
	Pass            string        `env:"DB_PASS"`
	Host            string        `env:"DB_HOST" env-default:"127.0.0.1"`
	Port            string        `env:"DB_PORT" env-default:"3306"`
	Name            string        `env:"DB_NAME" env-required:"true"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"25"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	// 起動時にgooseのマイグレーションを適用するか
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

type JWTConfig struct {
	Secret          string        `env:"JWT_SECRET" env-required:"true"`
	AccessLifetime  time.Duration `env:"JWT_ACCESS_LIFETIME" env-default:"24h"`
	UpdateLastLogin bool          `env:"JWT_UPDATE_LAST_LOGIN" env-default:"true"`
}

type PaginationConfig struct {
	PageSize int `env:"PAGE_SIZE" env-default:"10"`
}

// RedisConfig はタスク一覧キャッシュの設定です。Addrが空ならキャッシュは無効です。
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" env-default:""`
	Password string        `env:"REDIS_PASSWORD" env-default:""`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	TTL      time.Duration `env:"REDIS_TTL" env-default:"60s"`
}

// Enabled はRedisキャッシュが設定されているかを返します。
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type MailConfig struct {
	SMTPHost           string        `env:"SMTP_HOST" env-default:""`
	SMTPPort           string        `env:"SMTP_PORT" env-default:"2525"`
	SMTPUser           string        `env:"SMTP_USER" env-default:""`
	SMTPPassword       string        `env:"SMTP_PASSWORD" env-default:""`
	From               string        `env:"MAIL_FROM" env-default:"no-reply@task-tracker.local"`
	FrontendURL        string        `env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	ResetTokenLifetime time.Duration `env:"RESET_TOKEN_LIFETIME" env-default:"1h"`
}

// Load は環境変数から設定を読み込み、検証します。
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWT.Secret))
	}
	if c.JWT.AccessLifetime <= 0 {
		return fmt.Errorf("JWT_ACCESS_LIFETIME must be positive")
	}
	if c.Pagination.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.Pagination.PageSize)
	}
	return nil
}
