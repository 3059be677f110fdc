package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// allKeys — все переменные окружения, которые читает Load.
var allKeys = []string{
	"UPL_PORT", "UPL_APP_ROOT", "UPL_DEFAULT_UPLOAD_PATH", "UPL_MAX_FILE_SIZE",
	"UPL_WAL_DIR", "UPL_WAL_RETENTION", "UPL_JANITOR_INTERVAL", "UPL_TEMP_MAX_AGE",
	"UPL_CACHE_SIZE", "UPL_CACHE_TTL", "UPL_CORS_ALLOWED_ORIGINS",
	"UPL_MIRROR_ENDPOINT", "UPL_MIRROR_ACCESS_KEY", "UPL_MIRROR_SECRET_KEY",
	"UPL_MIRROR_BUCKET", "UPL_MIRROR_USE_SSL", "UPL_MIRROR_TIMEOUT",
	"UPL_DEPHEALTH_CHECK_INTERVAL", "UPL_DEPHEALTH_GROUP", "DEPHEALTH_NAME",
	"UPL_TLS_CERT", "UPL_TLS_KEY",
	"UPL_HTTP_READ_TIMEOUT", "UPL_HTTP_WRITE_TIMEOUT", "UPL_HTTP_IDLE_TIMEOUT",
	"UPL_SHUTDOWN_TIMEOUT", "UPL_LOG_LEVEL", "UPL_LOG_FORMAT",
}

// clearAllEnvVars очищает все переменные UPL_* на время теста.
// t.Setenv восстанавливает исходные значения после теста.
func clearAllEnvVars(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// setEnvVars устанавливает переменные окружения для теста.
func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearAllEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	wd, _ := os.Getwd()
	if cfg.Port != 8080 {
		t.Errorf("Port: ожидалось 8080, получено %d", cfg.Port)
	}
	if cfg.AppRoot != wd {
		t.Errorf("AppRoot: ожидалось %q, получено %q", wd, cfg.AppRoot)
	}
	if cfg.DefaultUploadPath != "uploads/profile" {
		t.Errorf("DefaultUploadPath: получено %q", cfg.DefaultUploadPath)
	}
	if cfg.MaxFileSize != 5242880 {
		t.Errorf("MaxFileSize: ожидалось 5242880, получено %d", cfg.MaxFileSize)
	}
	if cfg.WALDir != filepath.Join(wd, ".wal") {
		t.Errorf("WALDir: получено %q", cfg.WALDir)
	}
	if cfg.WALRetention != 24*time.Hour {
		t.Errorf("WALRetention: ожидалось 24h, получено %v", cfg.WALRetention)
	}
	if cfg.JanitorInterval != time.Hour {
		t.Errorf("JanitorInterval: ожидалось 1h, получено %v", cfg.JanitorInterval)
	}
	if cfg.TempMaxAge != time.Hour {
		t.Errorf("TempMaxAge: ожидалось 1h, получено %v", cfg.TempMaxAge)
	}
	if cfg.CacheSize != 1024 || cfg.CacheTTL != 10*time.Minute {
		t.Errorf("Cache: получено %d / %v", cfg.CacheSize, cfg.CacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins: получено %v", cfg.CORSAllowedOrigins)
	}
	if cfg.MirrorEnabled() {
		t.Error("MirrorEnabled: ожидалось false без UPL_MIRROR_ENDPOINT")
	}
	if cfg.MirrorBucket != "uploads" || cfg.MirrorTimeout != 30*time.Second {
		t.Errorf("Mirror: получено %q / %v", cfg.MirrorBucket, cfg.MirrorTimeout)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval: ожидалось 15s, получено %v", cfg.DephealthCheckInterval)
	}
	if cfg.DephealthGroup != "ebidding" || cfg.DephealthName != "" {
		t.Errorf("Dephealth: получено %q / %q", cfg.DephealthGroup, cfg.DephealthName)
	}
	if cfg.TLSEnabled() {
		t.Error("TLSEnabled: ожидалось false")
	}
	if cfg.HTTPReadTimeout != 30*time.Second {
		t.Errorf("HTTPReadTimeout: ожидалось 30s, получено %v", cfg.HTTPReadTimeout)
	}
	if cfg.HTTPWriteTimeout != 60*time.Second {
		t.Errorf("HTTPWriteTimeout: ожидалось 60s, получено %v", cfg.HTTPWriteTimeout)
	}
	if cfg.HTTPIdleTimeout != 120*time.Second {
		t.Errorf("HTTPIdleTimeout: ожидалось 120s, получено %v", cfg.HTTPIdleTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout: ожидалось 5s, получено %v", cfg.ShutdownTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось INFO, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось 'json', получено %q", cfg.LogFormat)
	}
}

func TestLoad_AllCustomValues(t *testing.T) {
	clearAllEnvVars(t)
	root := t.TempDir()

	setEnvVars(t, map[string]string{
		"UPL_PORT":                     "9090",
		"UPL_APP_ROOT":                 root,
		"UPL_DEFAULT_UPLOAD_PATH":      "uploads/avatars",
		"UPL_MAX_FILE_SIZE":            "1048576",
		"UPL_WAL_DIR":                  "/var/lib/upl/wal",
		"UPL_WAL_RETENTION":            "48h",
		"UPL_JANITOR_INTERVAL":         "30m",
		"UPL_TEMP_MAX_AGE":             "2h",
		"UPL_CACHE_SIZE":               "16",
		"UPL_CACHE_TTL":                "1m",
		"UPL_CORS_ALLOWED_ORIGINS":     "https://a.example, https://b.example ,",
		"UPL_MIRROR_ENDPOINT":          "minio:9000",
		"UPL_MIRROR_ACCESS_KEY":        "minio",
		"UPL_MIRROR_SECRET_KEY":        "minio123",
		"UPL_MIRROR_BUCKET":            "ebidding",
		"UPL_MIRROR_USE_SSL":           "true",
		"UPL_MIRROR_TIMEOUT":           "10s",
		"UPL_DEPHEALTH_CHECK_INTERVAL": "5s",
		"UPL_DEPHEALTH_GROUP":          "prod",
		"DEPHEALTH_NAME":               "upl-01",
		"UPL_TLS_CERT":                 "/tmp/tls.crt",
		"UPL_TLS_KEY":                  "/tmp/tls.key",
		"UPL_HTTP_READ_TIMEOUT":        "10s",
		"UPL_HTTP_WRITE_TIMEOUT":       "20s",
		"UPL_HTTP_IDLE_TIMEOUT":        "40s",
		"UPL_SHUTDOWN_TIMEOUT":         "15s",
		"UPL_LOG_LEVEL":                "debug",
		"UPL_LOG_FORMAT":               "text",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port: ожидалось 9090, получено %d", cfg.Port)
	}
	if cfg.AppRoot != root {
		t.Errorf("AppRoot: ожидалось %q, получено %q", root, cfg.AppRoot)
	}
	if cfg.DefaultUploadPath != "uploads/avatars" {
		t.Errorf("DefaultUploadPath: получено %q", cfg.DefaultUploadPath)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize: получено %d", cfg.MaxFileSize)
	}
	if cfg.WALDir != "/var/lib/upl/wal" {
		t.Errorf("WALDir: получено %q", cfg.WALDir)
	}
	if cfg.WALRetention != 48*time.Hour || cfg.JanitorInterval != 30*time.Minute || cfg.TempMaxAge != 2*time.Hour {
		t.Errorf("Janitor: получено %v / %v / %v", cfg.WALRetention, cfg.JanitorInterval, cfg.TempMaxAge)
	}
	if cfg.CacheSize != 16 || cfg.CacheTTL != time.Minute {
		t.Errorf("Cache: получено %d / %v", cfg.CacheSize, cfg.CacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins: получено %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.MirrorEnabled() || !cfg.MirrorUseSSL || cfg.MirrorBucket != "ebidding" || cfg.MirrorTimeout != 10*time.Second {
		t.Errorf("Mirror: получено %+v", cfg)
	}
	if cfg.DephealthCheckInterval != 5*time.Second || cfg.DephealthGroup != "prod" || cfg.DephealthName != "upl-01" {
		t.Errorf("Dephealth: получено %v / %q / %q", cfg.DephealthCheckInterval, cfg.DephealthGroup, cfg.DephealthName)
	}
	if !cfg.TLSEnabled() {
		t.Error("TLSEnabled: ожидалось true")
	}
	if cfg.HTTPReadTimeout != 10*time.Second || cfg.HTTPWriteTimeout != 20*time.Second || cfg.HTTPIdleTimeout != 40*time.Second {
		t.Errorf("HTTP таймауты: получено %v / %v / %v", cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, cfg.HTTPIdleTimeout)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout: получено %v", cfg.ShutdownTimeout)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("Логирование: получено %v / %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"порт ноль", map[string]string{"UPL_PORT": "0"}},
		{"порт больше 65535", map[string]string{"UPL_PORT": "70000"}},
		{"порт не число", map[string]string{"UPL_PORT": "abc"}},
		{"размер ноль", map[string]string{"UPL_MAX_FILE_SIZE": "0"}},
		{"размер отрицательный", map[string]string{"UPL_MAX_FILE_SIZE": "-1"}},
		{"размер не число", map[string]string{"UPL_MAX_FILE_SIZE": "5MB"}},
		{"некорректная длительность", map[string]string{"UPL_WAL_RETENTION": "сутки"}},
		{"нулевой интервал", map[string]string{"UPL_JANITOR_INTERVAL": "0s"}},
		{"отрицательный TTL", map[string]string{"UPL_CACHE_TTL": "-1m"}},
		{"нулевой кэш", map[string]string{"UPL_CACHE_SIZE": "0"}},
		{"пустой CORS", map[string]string{"UPL_CORS_ALLOWED_ORIGINS": " , "}},
		{"зеркало без ключей", map[string]string{"UPL_MIRROR_ENDPOINT": "minio:9000"}},
		{"некорректный SSL", map[string]string{"UPL_MIRROR_USE_SSL": "да"}},
		{"таймаут зеркала больше половины таймаута записи", map[string]string{
			"UPL_MIRROR_ENDPOINT":   "minio:9000",
			"UPL_MIRROR_ACCESS_KEY": "minio",
			"UPL_MIRROR_SECRET_KEY": "minio123",
			"UPL_MIRROR_TIMEOUT":    "31s",
		}},
		{"только сертификат", map[string]string{"UPL_TLS_CERT": "/tmp/tls.crt"}},
		{"только ключ", map[string]string{"UPL_TLS_KEY": "/tmp/tls.key"}},
		{"уровень логов", map[string]string{"UPL_LOG_LEVEL": "verbose"}},
		{"формат логов", map[string]string{"UPL_LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAllEnvVars(t)
			setEnvVars(t, tt.vars)

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %v", tt.vars)
			}
		})
	}
}

func TestLoad_ValidLogLevels(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			clearAllEnvVars(t)
			setEnvVars(t, map[string]string{"UPL_LOG_LEVEL": tt.input})

			cfg, err := Load()
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if cfg.LogLevel != tt.expected {
				t.Errorf("LogLevel: ожидалось %v, получено %v", tt.expected, cfg.LogLevel)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearAllEnvVars(t)
	dir := t.TempDir()

	// Нет файла — не ошибка
	loaded, err := LoadEnvFile(filepath.Join(dir, ".env"))
	if err != nil || loaded {
		t.Fatalf("отсутствующий файл: loaded=%v, err=%v", loaded, err)
	}

	envPath := filepath.Join(dir, ".env")
	content := "UPL_PORT=9191\nUPL_LOG_FORMAT=text\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Уже заданная переменная не перезаписывается
	t.Setenv("UPL_LOG_FORMAT", "json")

	loaded, err = LoadEnvFile(envPath)
	if err != nil || !loaded {
		t.Fatalf("LoadEnvFile: loaded=%v, err=%v", loaded, err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port: ожидалось 9191 из .env, получено %d", cfg.Port)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: окружение должно иметь приоритет над .env, получено %q", cfg.LogFormat)
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"json", "json"},
		{"text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: tt.format,
			}
			logger := SetupLogger(cfg)
			if logger == nil {
				t.Fatal("SetupLogger вернул nil")
			}
		})
	}
}
