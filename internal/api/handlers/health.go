// health.go — обработчики health endpoints для liveness и readiness проверок Kubernetes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/ebidding/upload-service/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// serviceName — имя сервиса в ответах health и info.
const serviceName = "upload-service"

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// publicDir — <root>/public, куда пишутся загрузки
	publicDir string
	// walDir — путь к директории WAL
	walDir string
}

// NewHealthHandler создаёт обработчик health endpoints.
// Пустой путь отключает соответствующую проверку.
func NewHealthHandler(publicDir, walDir string) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		publicDir: publicDir,
		walDir:    walDir,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Публичный каталог недоступен — fail (503); WAL недоступен — degraded (200).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := checkWritable(h.publicDir, "Публичная директория недоступна для записи: ")
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	walCheck := checkWritable(h.walDir, "Директория WAL недоступна для записи: ")
	if walCheck["status"] != "ok" && overallStatus != statusFail {
		overallStatus = "degraded"
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
		"checks": map[string]any{
			"filesystem": fsCheck,
			"wal":        walCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkWritable проверяет запись в каталог через пробный файл.
func checkWritable(dir, failPrefix string) map[string]any {
	if dir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": failPrefix + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
