package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Local    LocalConfig
	Auth     AuthConfig
	AI       AIConfig
	Budget   BudgetConfig
	Ingest   IngestConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// LocalConfig описывает хранилище гостевого профиля.
type LocalConfig struct {
	Path         string
	ReceiptsKey  string
	LegacyKey    string
	AllowanceKey string
	ThemeKey     string
}

type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

type AIConfig struct {
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxOutputTokens    int
	BreakerFailures    int
	BreakerCooldown    time.Duration
}

type BudgetConfig struct {
	DefaultAllowance float64
	WarningFraction  float64
}

type IngestConfig struct {
	MaxFileBytes   int64
	MaxFiles       int
	Concurrency    int
	OfficeKeywords []string
}

const defaultMaxFileBytes = 20 * 1024 * 1024

var defaultOfficeKeywords = []string{
	"office",
	"tech park",
	"techpark",
	"business park",
	"it park",
	"sez",
	"manyata",
	"embassy",
	"ecospace",
	"bagmane",
	"rmz",
	"prestige tech",
	"global village",
	"electronic city",
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	serverPort, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return cfg, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	// Загрузка пачки чеков ждет ответа модели по каждому файлу.
	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return cfg, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Server = ServerConfig{
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		Port:         serverPort,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return cfg, err
	}

	maxOpenConns, err := parseIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return cfg, err
	}

	maxIdleConns, err := parseIntEnv("DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return cfg, err
	}

	connMaxIdleTime, err := parseDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return cfg, err
	}

	connMaxLifetime, err := parseDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return cfg, err
	}

	cfg.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", ""),
		Port:            dbPort,
		User:            getEnv("DB_USER", "receipts"),
		Password:        getEnv("DB_PASSWORD", "receipts"),
		Name:            getEnv("DB_NAME", "receipt_tracker"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxIdleTime: connMaxIdleTime,
		ConnMaxLifetime: connMaxLifetime,
	}

	cfg.Local = LocalConfig{
		Path:         getEnv("LOCAL_DB_PATH", "data/guest.db"),
		ReceiptsKey:  getEnv("LOCAL_RECEIPTS_KEY", "receipts_v2"),
		LegacyKey:    getEnv("LOCAL_LEGACY_RECEIPTS_KEY", "receipts"),
		AllowanceKey: getEnv("LOCAL_ALLOWANCE_KEY", "monthly_allowance"),
		ThemeKey:     getEnv("LOCAL_THEME_KEY", "theme_preference"),
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return cfg, err
	}

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour)
	if err != nil {
		return cfg, err
	}

	rateLimitPerMinute, err := parseIntEnv("AUTH_RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return cfg, err
	}

	rateLimitBurst, err := parseIntEnv("AUTH_RATE_LIMIT_BURST", 10)
	if err != nil {
		return cfg, err
	}

	cfg.Auth = AuthConfig{
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "receipt-tracker"),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		RateLimitPerMinute: rateLimitPerMinute,
		RateLimitBurst:     rateLimitBurst,
	}

	aiTimeout, err := parseDurationEnv("AI_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}

	aiRateLimitPerMinute, err := parseIntEnv("AI_RATE_LIMIT_PER_MINUTE", 20)
	if err != nil {
		return cfg, err
	}

	aiRateLimitBurst, err := parseIntEnv("AI_RATE_LIMIT_BURST", 5)
	if err != nil {
		return cfg, err
	}

	aiMaxOutputTokens, err := parseIntEnv("AI_MAX_OUTPUT_TOKENS", 1024)
	if err != nil {
		return cfg, err
	}

	breakerFailures, err := parseIntEnv("AI_BREAKER_FAILURES", 5)
	if err != nil {
		return cfg, err
	}

	breakerCooldown, err := parseDurationEnv("AI_BREAKER_COOLDOWN", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	aiProvider := strings.ToLower(getEnv("AI_PROVIDER", "gemini"))
	defaultBaseURL := "https://api.groq.com/openai/v1"
	defaultModel := "meta-llama/llama-4-scout-17b-16e-instruct"
	if aiProvider == "gemini" {
		defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
		defaultModel = "gemini-2.0-flash"
	}

	aiAPIKey := getEnv("AI_API_KEY", "")
	if aiAPIKey == "" && aiProvider == "gemini" {
		aiAPIKey = getEnv("GEMINI_API_KEY", "")
	}

	cfg.AI = AIConfig{
		Provider:           aiProvider,
		APIKey:             aiAPIKey,
		BaseURL:            getEnv("AI_BASE_URL", defaultBaseURL),
		Model:              getEnv("AI_MODEL", defaultModel),
		Timeout:            aiTimeout,
		RateLimitPerMinute: aiRateLimitPerMinute,
		RateLimitBurst:     aiRateLimitBurst,
		MaxOutputTokens:    aiMaxOutputTokens,
		BreakerFailures:    breakerFailures,
		BreakerCooldown:    breakerCooldown,
	}

	allowance, err := parseFloatEnv("BUDGET_DEFAULT_ALLOWANCE", 6500)
	if err != nil {
		return cfg, err
	}

	warningFraction, err := parseFloatEnv("BUDGET_WARNING_FRACTION", 0.8)
	if err != nil {
		return cfg, err
	}

	cfg.Budget = BudgetConfig{
		DefaultAllowance: allowance,
		WarningFraction:  warningFraction,
	}

	maxFileBytes, err := parseIntEnv("INGEST_MAX_FILE_BYTES", defaultMaxFileBytes)
	if err != nil {
		return cfg, err
	}

	maxFiles, err := parseIntEnv("INGEST_MAX_FILES", 20)
	if err != nil {
		return cfg, err
	}

	concurrency, err := parseNonNegativeIntEnv("INGEST_CONCURRENCY", 0)
	if err != nil {
		return cfg, err
	}

	keywords := parseCSVEnv("INGEST_OFFICE_KEYWORDS")
	if keywords == nil {
		keywords = append([]string(nil), defaultOfficeKeywords...)
	}

	cfg.Ingest = IngestConfig{
		MaxFileBytes:   int64(maxFileBytes),
		MaxFiles:       maxFiles,
		Concurrency:    concurrency,
		OfficeKeywords: keywords,
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// RemoteEnabled сообщает, настроено ли удаленное хранилище пользователей.
func (c DatabaseConfig) RemoteEnabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	if strings.TrimSpace(c.Local.Path) == "" {
		return fmt.Errorf("LOCAL_DB_PATH is required")
	}

	if c.Local.ReceiptsKey == c.Local.LegacyKey {
		return fmt.Errorf("LOCAL_RECEIPTS_KEY and LOCAL_LEGACY_RECEIPTS_KEY must differ")
	}

	if c.Database.RemoteEnabled() {
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}

		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}

		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
		}

		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when DB_HOST is set")
		}
	}

	switch c.AI.Provider {
	case "gemini", "groq":
	default:
		return fmt.Errorf("AI_PROVIDER must be gemini or groq")
	}

	if c.Budget.WarningFraction <= 0 || c.Budget.WarningFraction > 1 {
		return fmt.Errorf("BUDGET_WARNING_FRACTION must be in (0, 1]")
	}

	if len(c.Ingest.OfficeKeywords) == 0 {
		return fmt.Errorf("INGEST_OFFICE_KEYWORDS must not be empty")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseNonNegativeIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}

	return parsed, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseCSVEnv(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
