// Пакет config — загрузка и валидация конфигурации Upload Service
// из переменных окружения (префикс UPL_) и опционального .env файла.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Upload Service.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корень приложения; файлы сохраняются в <AppRoot>/public
	AppRoot string
	// Каталог загрузки по умолчанию (относительно public)
	DefaultUploadPath string
	// Максимальный размер файла в байтах
	MaxFileSize int64

	// Путь к директории WAL
	WALDir string
	// Срок хранения завершённых WAL-записей
	WALRetention time.Duration
	// Интервал запуска janitor
	JanitorInterval time.Duration
	// Возраст, после которого временный файл считается осиротевшим
	TempMaxAge time.Duration

	// Размер кэша контрольных сумм (записей)
	CacheSize int
	// TTL записи кэша контрольных сумм
	CacheTTL time.Duration

	// Разрешённые CORS origins
	CORSAllowedOrigins []string

	// S3-совместимое хранилище копий (пустой endpoint — выключено)
	MirrorEndpoint  string
	MirrorAccessKey string
	MirrorSecretKey string
	MirrorBucket    string
	MirrorUseSSL    bool
	MirrorTimeout   time.Duration

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя вершины графа в метриках topologymetrics (DEPHEALTH_NAME).
	// Пустое значение — имя выводится из hostname пода.
	DephealthName string

	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string

	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
}

// MirrorEnabled сообщает, настроено ли хранилище копий.
func (c *Config) MirrorEnabled() bool {
	return c.MirrorEndpoint != ""
}

// TLSEnabled сообщает, задан ли TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// LoadEnvFile загружает переменные из .env файла path. Уже заданные
// переменные окружения не перезаписываются. Отсутствие файла
// не считается ошибкой: возвращается false.
func LoadEnvFile(path string) (bool, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return true, nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// UPL_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("UPL_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("UPL_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("UPL_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// UPL_APP_ROOT — корень приложения (по умолчанию текущий каталог)
	cfg.AppRoot, err = filepath.Abs(getEnvDefault("UPL_APP_ROOT", "."))
	if err != nil {
		return nil, fmt.Errorf("UPL_APP_ROOT: %w", err)
	}

	// UPL_DEFAULT_UPLOAD_PATH — каталог загрузки по умолчанию
	cfg.DefaultUploadPath = getEnvDefault("UPL_DEFAULT_UPLOAD_PATH", "uploads/profile")

	// UPL_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 5 MiB)
	cfg.MaxFileSize, err = getEnvInt64("UPL_MAX_FILE_SIZE", 5*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("UPL_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("UPL_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// UPL_WAL_DIR — директория WAL (по умолчанию <root>/.wal)
	cfg.WALDir = getEnvDefault("UPL_WAL_DIR", filepath.Join(cfg.AppRoot, ".wal"))

	if cfg.WALRetention, err = getEnvPositiveDuration("UPL_WAL_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.JanitorInterval, err = getEnvPositiveDuration("UPL_JANITOR_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.TempMaxAge, err = getEnvPositiveDuration("UPL_TEMP_MAX_AGE", time.Hour); err != nil {
		return nil, err
	}

	// UPL_CACHE_SIZE — размер кэша контрольных сумм (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("UPL_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("UPL_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("UPL_CACHE_SIZE: значение должно быть положительным")
	}
	if cfg.CacheTTL, err = getEnvPositiveDuration("UPL_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	// UPL_CORS_ALLOWED_ORIGINS — через запятую (по умолчанию "*")
	cfg.CORSAllowedOrigins = splitList(getEnvDefault("UPL_CORS_ALLOWED_ORIGINS", "*"))
	if len(cfg.CORSAllowedOrigins) == 0 {
		return nil, fmt.Errorf("UPL_CORS_ALLOWED_ORIGINS: список пуст")
	}

	// Хранилище копий
	cfg.MirrorEndpoint = getEnvDefault("UPL_MIRROR_ENDPOINT", "")
	cfg.MirrorAccessKey = getEnvDefault("UPL_MIRROR_ACCESS_KEY", "")
	cfg.MirrorSecretKey = getEnvDefault("UPL_MIRROR_SECRET_KEY", "")
	cfg.MirrorBucket = getEnvDefault("UPL_MIRROR_BUCKET", "uploads")
	cfg.MirrorUseSSL, err = getEnvBool("UPL_MIRROR_USE_SSL", false)
	if err != nil {
		return nil, fmt.Errorf("UPL_MIRROR_USE_SSL: %w", err)
	}
	if cfg.MirrorTimeout, err = getEnvPositiveDuration("UPL_MIRROR_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.MirrorEnabled() && (cfg.MirrorAccessKey == "" || cfg.MirrorSecretKey == "") {
		return nil, fmt.Errorf("UPL_MIRROR_ACCESS_KEY и UPL_MIRROR_SECRET_KEY обязательны при заданном UPL_MIRROR_ENDPOINT")
	}

	// topologymetrics
	if cfg.DephealthCheckInterval, err = getEnvPositiveDuration("UPL_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	cfg.DephealthGroup = getEnvDefault("UPL_DEPHEALTH_GROUP", "ebidding")
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// UPL_TLS_CERT / UPL_TLS_KEY — задаются вместе или не задаются
	cfg.TLSCert = getEnvDefault("UPL_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("UPL_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("UPL_TLS_CERT и UPL_TLS_KEY должны быть заданы вместе")
	}

	if cfg.HTTPReadTimeout, err = getEnvPositiveDuration("UPL_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getEnvPositiveDuration("UPL_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getEnvPositiveDuration("UPL_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvPositiveDuration("UPL_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	// Копирование выполняется внутри запроса загрузки: на него отводится
	// не больше половины UPL_HTTP_WRITE_TIMEOUT
	if cfg.MirrorEnabled() && 2*cfg.MirrorTimeout > cfg.HTTPWriteTimeout {
		return nil, fmt.Errorf("UPL_MIRROR_TIMEOUT (%s) должен быть не больше половины UPL_HTTP_WRITE_TIMEOUT (%s)",
			cfg.MirrorTimeout, cfg.HTTPWriteTimeout)
	}

	// UPL_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("UPL_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("UPL_LOG_LEVEL: %w", err)
	}

	// UPL_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("UPL_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("UPL_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — getEnvDuration с проверкой d > 0.
// Ошибка уже содержит имя переменной.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: длительность должна быть положительной, получено %s", key, d)
	}
	return d, nil
}

// splitList разбивает строку через запятую, отбрасывая пустые элементы.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
