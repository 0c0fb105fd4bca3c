package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"autoexit/pkg/crypto"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
//
// Порядок применения:
//  1. значения по умолчанию
//  2. TOML файл из CONFIG_FILE (если задан)
//  3. переменные окружения (в том числе из .env)
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Security SecurityConfig `toml:"security"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Broker   BrokerConfig   `toml:"broker"`
	Redis    RedisConfig    `toml:"redis"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int           `toml:"port"`
	Host            string        `toml:"host"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	AllowedOrigins  []string      `toml:"allowed_origins"` // пусто - любой origin
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Name         string `toml:"name"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	JWTSecret       string  `toml:"jwt_secret"`       // пусто - API без авторизации
	SchedulerSecret string  `toml:"scheduler_secret"` // секрет внешнего планировщика (открытый или bcrypt хеш)
	EncryptionKey   string  `toml:"encryption_key"`   // 32 байта, для зашифрованного токена брокера
	RateLimitRPS    float64 `toml:"rate_limit_rps"`
	RateLimitBurst  float64 `toml:"rate_limit_burst"`
}

// MonitorConfig - настройки цикла мониторинга
type MonitorConfig struct {
	LogSize            int           `toml:"log_size"`
	TickTimeout        time.Duration `toml:"tick_timeout"`
	LiquidationTimeout time.Duration `toml:"liquidation_timeout"`
	ResumeOnBoot       bool          `toml:"resume_on_boot"` // перезапустить мониторинг, если он работал до рестарта
	ActivityBuffer     int           `toml:"activity_buffer"`
	ActivityKeep       int           `toml:"activity_keep"` // сколько записей журнала хранить
}

// BrokerConfig - подключение к брокеру
type BrokerConfig struct {
	BaseURL              string  `toml:"base_url"`
	AppKey               string  `toml:"app_key"`
	ClientCode           string  `toml:"client_code"`
	AccessToken          string  `toml:"access_token"`
	AccessTokenEncrypted string  `toml:"access_token_encrypted"` // AES-256-GCM, base64
	MockData             bool    `toml:"mock_data"`
	MockFile             string  `toml:"mock_file"`
	PositionsRate        float64 `toml:"positions_rate"`
	OrdersRate           float64 `toml:"orders_rate"`
}

// RedisConfig - зеркало снимков мониторинга в Redis (опционально)
type RedisConfig struct {
	Enabled  bool          `toml:"enabled"`
	Addr     string        `toml:"addr"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	Key      string        `toml:"key"`
	Channel  string        `toml:"channel"`
	TTL      time.Duration `toml:"ttl"`
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Name:         "autoexit",
			User:         "autoexit",
			Password:     "autoexit",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Security: SecurityConfig{
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Monitor: MonitorConfig{
			LogSize:            100,
			TickTimeout:        10 * time.Second,
			LiquidationTimeout: 60 * time.Second,
			ActivityBuffer:     256,
			ActivityKeep:       1000,
		},
		Broker: BrokerConfig{
			MockFile:      "data/mock_positions.json",
			PositionsRate: 5,
			OrdersRate:    10,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Key:     "autoexit:snapshot",
			Channel: "autoexit:snapshots",
			TTL:     24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load загружает конфигурацию: .env, TOML файл, переменные окружения
func Load() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv переопределяет значения переменными окружения
func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Security.JWTSecret = getEnv("JWT_SECRET", c.Security.JWTSecret)
	c.Security.SchedulerSecret = getEnv("SCHEDULER_SECRET", c.Security.SchedulerSecret)
	c.Security.EncryptionKey = getEnv("ENCRYPTION_KEY", c.Security.EncryptionKey)
	c.Security.RateLimitRPS = getEnvAsFloat("RATE_LIMIT_RPS", c.Security.RateLimitRPS)
	c.Security.RateLimitBurst = getEnvAsFloat("RATE_LIMIT_BURST", c.Security.RateLimitBurst)

	c.Monitor.LogSize = getEnvAsInt("MONITOR_LOG_SIZE", c.Monitor.LogSize)
	c.Monitor.TickTimeout = getEnvAsDuration("MONITOR_TICK_TIMEOUT", c.Monitor.TickTimeout)
	c.Monitor.LiquidationTimeout = getEnvAsDuration("MONITOR_LIQUIDATION_TIMEOUT", c.Monitor.LiquidationTimeout)
	c.Monitor.ResumeOnBoot = getEnvAsBool("MONITOR_RESUME_ON_BOOT", c.Monitor.ResumeOnBoot)
	c.Monitor.ActivityBuffer = getEnvAsInt("ACTIVITY_BUFFER", c.Monitor.ActivityBuffer)
	c.Monitor.ActivityKeep = getEnvAsInt("ACTIVITY_KEEP", c.Monitor.ActivityKeep)

	c.Broker.BaseURL = getEnv("BROKER_BASE_URL", c.Broker.BaseURL)
	c.Broker.AppKey = getEnv("FIVEPAISA_APP_KEY", c.Broker.AppKey)
	c.Broker.ClientCode = getEnv("FIVEPAISA_CLIENT_CODE", c.Broker.ClientCode)
	c.Broker.AccessToken = getEnv("FIVEPAISA_ACCESS_TOKEN", c.Broker.AccessToken)
	c.Broker.AccessTokenEncrypted = getEnv("FIVEPAISA_ACCESS_TOKEN_ENC", c.Broker.AccessTokenEncrypted)
	c.Broker.MockData = getEnvAsBool("DISPLAY_MOCK_DATA", c.Broker.MockData)
	c.Broker.MockFile = getEnv("MOCK_POSITIONS_FILE", c.Broker.MockFile)
	c.Broker.PositionsRate = getEnvAsFloat("BROKER_POSITIONS_RATE", c.Broker.PositionsRate)
	c.Broker.OrdersRate = getEnvAsFloat("BROKER_ORDERS_RATE", c.Broker.OrdersRate)

	c.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.Key = getEnv("REDIS_SNAPSHOT_KEY", c.Redis.Key)
	c.Redis.Channel = getEnv("REDIS_SNAPSHOT_CHANNEL", c.Redis.Channel)
	c.Redis.TTL = getEnvAsDuration("REDIS_SNAPSHOT_TTL", c.Redis.TTL)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
}

// Validate проверяет параметры конфигурации
func (c *Config) Validate() error {
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateRanges()
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	if c.Broker.AccessTokenEncrypted != "" && len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes to decrypt FIVEPAISA_ACCESS_TOKEN_ENC")
	}

	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Monitor.TickTimeout <= 0 {
		return fmt.Errorf("MONITOR_TICK_TIMEOUT must be positive, got %v", c.Monitor.TickTimeout)
	}

	if c.Monitor.LiquidationTimeout <= 0 {
		return fmt.Errorf("MONITOR_LIQUIDATION_TIMEOUT must be positive, got %v", c.Monitor.LiquidationTimeout)
	}

	if c.Monitor.LogSize < 1 || c.Monitor.LogSize > 10000 {
		return fmt.Errorf("MONITOR_LOG_SIZE must be between 1 and 10000, got %d", c.Monitor.LogSize)
	}

	if c.Monitor.ActivityBuffer < 1 {
		return fmt.Errorf("ACTIVITY_BUFFER must be positive, got %d", c.Monitor.ActivityBuffer)
	}

	if c.Security.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS cannot be negative, got %v", c.Security.RateLimitRPS)
	}

	if c.Broker.PositionsRate < 0 || c.Broker.OrdersRate < 0 {
		return fmt.Errorf("broker rate limits cannot be negative")
	}

	return nil
}

// BrokerAccessToken возвращает токен брокера, расшифровывая его при необходимости
func (c *Config) BrokerAccessToken() (string, error) {
	if c.Broker.AccessTokenEncrypted == "" {
		return c.Broker.AccessToken, nil
	}
	token, err := crypto.OpenToken(c.Broker.AccessTokenEncrypted, c.Security.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt broker access token: %w", err)
	}
	return token, nil
}

// UseMockBroker возвращает true, если позиции берутся из файла
func (c *Config) UseMockBroker() bool {
	if c.Broker.MockData {
		return true
	}
	return c.Broker.ClientCode == "" || (c.Broker.AccessToken == "" && c.Broker.AccessTokenEncrypted == "")
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
