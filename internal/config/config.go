// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// MinSecretLength is the minimum length of the token signing secret in bytes.
const MinSecretLength = 32

var (
	ErrMissingSecret = errors.New("auth secret is required")
	ErrShortSecret   = fmt.Errorf("auth secret must be at least %d bytes", MinSecretLength)
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Session  SessionConfig
	SMTP     SMTPConfig
	OAuth    OAuthConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Metrics  MetricsConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

// AuthConfig holds token lifetimes, cookie names and the signing secret.
type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Secret            string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	MagicLinkTTL      time.Duration
	CodeTTL           time.Duration
	ResendCooldown    time.Duration
	AccessCookieName  string
	RefreshCookieName string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	HashKey  string // 32-byte hex string for HMAC signing of flow cookies
	BlockKey string // 32-byte hex string for AES encryption (optional)
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether outbound email is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type OAuthConfig struct {
	Google OAuthProviderConfig
	GitHub OAuthProviderConfig
	WeChat OAuthProviderConfig
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the provider has credentials.
func (c OAuthProviderConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type RedisConfig struct {
	URL string // empty disables redis
}

type AMQPConfig struct {
	URL      string // empty disables event publishing
	Exchange string
}

type MetricsConfig struct {
	Enabled bool
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Auth: AuthConfig{
			Secret:            cmd.String("auth-secret"),
			AccessTTL:         cmd.Duration("auth-access-ttl"),
			RefreshTTL:        cmd.Duration("auth-refresh-ttl"),
			MagicLinkTTL:      cmd.Duration("auth-magic-link-ttl"),
			CodeTTL:           cmd.Duration("auth-code-ttl"),
			ResendCooldown:    cmd.Duration("auth-resend-cooldown"),
			AccessCookieName:  cmd.String("auth-access-cookie"),
			RefreshCookieName: cmd.String("auth-refresh-cookie"),
		},
		Session: SessionConfig{
			HashKey:  cmd.String("session-hash-key"),
			BlockKey: cmd.String("session-block-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		OAuth: OAuthConfig{
			Google: OAuthProviderConfig{
				ClientID:     cmd.String("google-client-id"),
				ClientSecret: cmd.String("google-client-secret"),
			},
			GitHub: OAuthProviderConfig{
				ClientID:     cmd.String("github-client-id"),
				ClientSecret: cmd.String("github-client-secret"),
			},
			WeChat: OAuthProviderConfig{
				ClientID:     cmd.String("wechat-app-id"),
				ClientSecret: cmd.String("wechat-app-secret"),
			},
		},
		Redis: RedisConfig{
			URL: cmd.String("redis-url"),
		},
		AMQP: AMQPConfig{
			URL:      cmd.String("amqp-url"),
			Exchange: cmd.String("amqp-exchange"),
		},
		Metrics: MetricsConfig{
			Enabled: cmd.Bool("metrics"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	return cfg
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return ErrMissingSecret
	}
	if len(c.Auth.Secret) < MinSecretLength {
		return ErrShortSecret
	}
	return nil
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "http"
	if !IsLocalhost(host) {
		scheme = "https"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL of the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "auth-secret",
			Usage:   "Secret used to sign access and refresh tokens (at least 32 bytes)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_SECRET"), toml.TOML("auth.secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "auth-access-ttl",
			Value:   15 * time.Minute,
			Usage:   "Access token lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_ACCESS_TTL"), toml.TOML("auth.access_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "auth-refresh-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Refresh session lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_REFRESH_TTL"), toml.TOML("auth.refresh_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "auth-magic-link-ttl",
			Value:   15 * time.Minute,
			Usage:   "Magic link lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_MAGIC_LINK_TTL"), toml.TOML("auth.magic_link_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "auth-code-ttl",
			Value:   10 * time.Minute,
			Usage:   "Email verification code lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_CODE_TTL"), toml.TOML("auth.code_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "auth-resend-cooldown",
			Value:   time.Minute,
			Usage:   "Minimum delay between two codes for the same email",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_RESEND_COOLDOWN"), toml.TOML("auth.resend_cooldown", configFile)),
		},
		&cli.StringFlag{
			Name:    "auth-access-cookie",
			Value:   "auth_token",
			Usage:   "Access token cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_ACCESS_COOKIE"), toml.TOML("auth.access_cookie", configFile)),
		},
		&cli.StringFlag{
			Name:    "auth-refresh-cookie",
			Value:   "refresh_token",
			Usage:   "Refresh token cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_REFRESH_COOKIE"), toml.TOML("auth.refresh_cookie", configFile)),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Flow cookie hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Flow cookie block key for encryption (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (empty disables email)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// OAuth flags
		&cli.StringFlag{
			Name:    "google-client-id",
			Usage:   "Google OAuth client ID",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GOOGLE_CLIENT_ID"), toml.TOML("oauth.google.client_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "google-client-secret",
			Usage:   "Google OAuth client secret",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GOOGLE_CLIENT_SECRET"), toml.TOML("oauth.google.client_secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "github-client-id",
			Usage:   "GitHub OAuth client ID",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GITHUB_CLIENT_ID"), toml.TOML("oauth.github.client_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "github-client-secret",
			Usage:   "GitHub OAuth client secret",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GITHUB_CLIENT_SECRET"), toml.TOML("oauth.github.client_secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "wechat-app-id",
			Usage:   "WeChat open platform app ID",
			Sources: cli.NewValueSourceChain(cli.EnvVar("WECHAT_APP_ID"), toml.TOML("oauth.wechat.app_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "wechat-app-secret",
			Usage:   "WeChat open platform app secret",
			Sources: cli.NewValueSourceChain(cli.EnvVar("WECHAT_APP_SECRET"), toml.TOML("oauth.wechat.app_secret", configFile)),
		},
		// Infrastructure flags
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for resend cooldowns (empty uses in-process cooldowns)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_URL"), toml.TOML("redis.url", configFile)),
		},
		&cli.StringFlag{
			Name:    "amqp-url",
			Usage:   "AMQP URL for domain events (empty disables publishing)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AMQP_URL"), toml.TOML("amqp.url", configFile)),
		},
		&cli.StringFlag{
			Name:    "amqp-exchange",
			Value:   "studyhub.auth",
			Usage:   "AMQP topic exchange for domain events",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AMQP_EXCHANGE"), toml.TOML("amqp.exchange", configFile)),
		},
		&cli.BoolFlag{
			Name:    "metrics",
			Value:   true,
			Usage:   "Expose Prometheus metrics on /metrics",
			Sources: cli.NewValueSourceChain(cli.EnvVar("METRICS_ENABLED"), toml.TOML("metrics.enabled", configFile)),
		},
	}
}
