package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	AppCheck AppCheckConfig
	Contact  ContactConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	// Для 'single', если не пуст, используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single' (для обратной совместимости).
	// Используется, если Mode="single" и Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно). По умолчанию 0 (без ретраев).
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах). По умолчанию 8ms.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах). По умолчанию 512ms.
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// EmailConfig содержит настройки отправки писем через Resend
type EmailConfig struct {
	// Provider: "resend" или "noop" (для локальной разработки)
	Provider string `mapstructure:"provider"`

	ResendAPIKey string `mapstructure:"resend_api_key"`

	// From: адрес отправителя (например "Helixbytes <noreply@helixbytes.digital>")
	From string `mapstructure:"from"`

	// TeamRecipient: внутренний адрес команды для уведомлений о заявках
	TeamRecipient string `mapstructure:"team_recipient"`
}

// AppCheckConfig содержит настройки проверки attestation-токенов
type AppCheckConfig struct {
	// Enabled: при false все токены пропускаются (локальная разработка)
	Enabled bool `mapstructure:"enabled"`

	// Mode: "soft" — запрос без токена пропускается с логированием,
	// "strict" — запрос без токена отклоняется. Невалидный токен
	// отклоняется в обоих режимах.
	Mode string `mapstructure:"mode"`

	// ProjectNumber: номер проекта, к которому привязаны issuer и audience токена
	ProjectNumber string `mapstructure:"project_number"`

	// JWKSURL: endpoint с публичными ключами App Check
	JWKSURL string `mapstructure:"jwks_url"`
}

// ContactConfig содержит настройки пайплайна контактной формы
type ContactConfig struct {
	// RateLimitMax: максимум заявок с одного IP за окно
	RateLimitMax int `mapstructure:"rate_limit_max"`

	// RateLimitWindowMinutes: длительность окна fixed-window счетчика
	RateLimitWindowMinutes int `mapstructure:"rate_limit_window_minutes"`

	// VerificationTTLHours: время жизни verification-токена
	VerificationTTLHours int `mapstructure:"verification_ttl_hours"`

	// SubmissionRetentionDays: через сколько дней удаляются неподтвержденные заявки
	SubmissionRetentionDays int `mapstructure:"submission_retention_days"`

	// CounterRetentionHours: через сколько часов удаляются счетчики rate limit
	CounterRetentionHours int `mapstructure:"counter_retention_hours"`

	// AllowedOrigins: точный allow-list источников для CORS (без wildcard в проде)
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// PublicBaseURL: базовый URL API для построения verification-ссылок
	PublicBaseURL string `mapstructure:"public_base_url"`

	// StatusPageURL: страница сайта, на которую редиректит verify endpoint
	StatusPageURL string `mapstructure:"status_page_url"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 15)
	vip.SetDefault("email.provider", "resend")
	vip.SetDefault("appcheck.mode", "soft")
	vip.SetDefault("contact.rate_limit_max", 5)
	vip.SetDefault("contact.rate_limit_window_minutes", 60)
	vip.SetDefault("contact.verification_ttl_hours", 24)
	vip.SetDefault("contact.submission_retention_days", 7)
	vip.SetDefault("contact.counter_retention_hours", 24)

	// 2. Привязываем переменные окружения ЯВНО
	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS") // Для массива строк
	vip.BindEnv("redis.addr", "REDIS_ADDR")   // Для одиночной строки
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции Email
	vip.BindEnv("email.provider", "EMAIL_PROVIDER")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")
	vip.BindEnv("email.team_recipient", "EMAIL_TEAM_RECIPIENT")

	// Привязка для секции AppCheck
	vip.BindEnv("appcheck.enabled", "APPCHECK_ENABLED")
	vip.BindEnv("appcheck.mode", "APPCHECK_MODE")
	vip.BindEnv("appcheck.project_number", "APPCHECK_PROJECT_NUMBER")
	vip.BindEnv("appcheck.jwks_url", "APPCHECK_JWKS_URL")

	// Привязка для секции Contact
	vip.BindEnv("contact.rate_limit_max", "CONTACT_RATE_LIMIT_MAX")
	vip.BindEnv("contact.rate_limit_window_minutes", "CONTACT_RATE_LIMIT_WINDOW_MINUTES")
	vip.BindEnv("contact.verification_ttl_hours", "CONTACT_VERIFICATION_TTL_HOURS")
	vip.BindEnv("contact.submission_retention_days", "CONTACT_SUBMISSION_RETENTION_DAYS")
	vip.BindEnv("contact.counter_retention_hours", "CONTACT_COUNTER_RETENTION_HOURS")
	vip.BindEnv("contact.allowed_origins", "CONTACT_ALLOWED_ORIGINS")
	vip.BindEnv("contact.public_base_url", "CONTACT_PUBLIC_BASE_URL")
	vip.BindEnv("contact.status_page_url", "CONTACT_STATUS_PAGE_URL")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// 3. Устанавливаем путь к файлу конфигурации
	if configPath != "" {
		vip.SetConfigFile(configPath)
		// 4. Пытаемся прочитать файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 5. Анмаршалим конфигурацию (Viper объединит значения из файла и привязанных env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Email Provider: %s", cfg.Email.Provider)
		log.Printf("AppCheck Enabled: %t, Mode: %s", cfg.AppCheck.Enabled, cfg.AppCheck.Mode)
		log.Printf("Contact Rate Limit: %d per %d min", cfg.Contact.RateLimitMax, cfg.Contact.RateLimitWindowMinutes)
		log.Printf("Public Base URL: %s", cfg.Contact.PublicBaseURL)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------------")
	}

	// 7. Проверка обязательных параметров
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Contact.PublicBaseURL == "" {
		return nil, fmt.Errorf("contact public base url is required (check CONTACT_PUBLIC_BASE_URL env var)")
	}
	if cfg.Contact.StatusPageURL == "" {
		return nil, fmt.Errorf("contact status page url is required (check CONTACT_STATUS_PAGE_URL env var)")
	}
	if cfg.AppCheck.Enabled && cfg.AppCheck.ProjectNumber == "" {
		return nil, fmt.Errorf("app check project number is required when app check is enabled (check APPCHECK_PROJECT_NUMBER env var)")
	}
	if cfg.AppCheck.Mode != "soft" && cfg.AppCheck.Mode != "strict" {
		return nil, fmt.Errorf("app check mode must be 'soft' or 'strict', got '%s'", cfg.AppCheck.Mode)
	}
	if cfg.Email.Provider == "resend" {
		if cfg.Email.ResendAPIKey == "" || cfg.Email.From == "" || cfg.Email.TeamRecipient == "" {
			return nil, fmt.Errorf("email configuration (resend_api_key, from, team_recipient) is incomplete (check RESEND_API_KEY, EMAIL_FROM, EMAIL_TEAM_RECIPIENT env vars)")
		}
	}

	// Проверяем пароль БД вне debug-режима
	ginMode := vip.GetString("GIN_MODE")
	if ginMode != "debug" {
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
		}
	}

	return &cfg, nil
}
