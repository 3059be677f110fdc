// system.go — обработчик GET /api/v1/info (информация о сервисе загрузок).
// Публичный endpoint для service discovery и мониторинга.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/ebidding/upload-service/internal/config"
	"github.com/bigkaa/ebidding/upload-service/internal/domain/ingest"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/wal"
)

// DiskUsageFunc возвращает ёмкость файловой системы каталога path.
type DiskUsageFunc func(path string) (total, used, available int64, err error)

// DependencyHealth — источник состояния внешних зависимостей (dephealth).
type DependencyHealth interface {
	Health() map[string]bool
}

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	policy    ingest.Policy
	walEngine *wal.WAL
	diskUsage DiskUsageFunc
	deps      DependencyHealth
	logger    *slog.Logger
}

// NewSystemHandler создаёт обработчик системных endpoints.
// diskUsage и deps могут быть nil.
func NewSystemHandler(
	policy ingest.Policy,
	walEngine *wal.WAL,
	diskUsage DiskUsageFunc,
	deps DependencyHealth,
	logger *slog.Logger,
) *SystemHandler {
	return &SystemHandler{
		policy:    policy,
		walEngine: walEngine,
		diskUsage: diskUsage,
		deps:      deps,
		logger:    logger.With(slog.String("component", "system_handler")),
	}
}

// capacityInfo — ёмкость диска под публичным каталогом.
type capacityInfo struct {
	TotalBytes     int64 `json:"total_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
}

// limitsInfo — параметры приёма файлов.
type limitsInfo struct {
	MaxFileSize       int64  `json:"max_file_size"`
	DefaultUploadPath string `json:"default_upload_path"`
	AcceptedTypes     string `json:"accepted_types"`
}

// serviceInfo — ответ GET /api/v1/info.
type serviceInfo struct {
	Service      string          `json:"service"`
	Version      string          `json:"version"`
	Limits       limitsInfo      `json:"limits"`
	Capacity     *capacityInfo   `json:"capacity,omitempty"`
	WAL          *wal.Stats      `json:"wal,omitempty"`
	Dependencies map[string]bool `json:"dependencies,omitempty"`
}

// GetInfo обрабатывает GET /api/v1/info.
// Ошибки вспомогательных источников не ломают ответ: раздел опускается.
func (h *SystemHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	resp := serviceInfo{
		Service: serviceName,
		Version: config.Version,
		Limits: limitsInfo{
			MaxFileSize:       h.policy.MaxFileSize(),
			DefaultUploadPath: h.policy.DefaultUploadPath(),
			AcceptedTypes:     "image/*",
		},
	}

	if h.diskUsage != nil {
		total, used, available, err := h.diskUsage(h.policy.PublicRoot())
		if err != nil {
			h.logger.Warn("Не удалось получить ёмкость диска", slog.String("error", err.Error()))
		} else {
			resp.Capacity = &capacityInfo{TotalBytes: total, UsedBytes: used, AvailableBytes: available}
		}
	}

	if h.walEngine != nil {
		stats, err := h.walEngine.Stats()
		if err != nil {
			h.logger.Warn("Не удалось получить статистику WAL", slog.String("error", err.Error()))
		} else {
			resp.WAL = &stats
		}
	}

	if h.deps != nil {
		resp.Dependencies = h.deps.Health()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
