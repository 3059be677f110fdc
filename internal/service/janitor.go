// janitor.go — фоновая уборка служебных данных загрузок.
//
// Janitor выполняет две задачи:
//  1. Удаляет завершённые WAL-записи старше срока хранения (UPL_WAL_RETENTION)
//  2. Удаляет осиротевшие временные файлы старше UPL_TEMP_MAX_AGE
//
// Запускается как горутина с периодическим тикером (UPL_JANITOR_INTERVAL).
package service

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/ebidding/upload-service/internal/storage/filestore"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/wal"
)

// Prometheus метрики janitor
var (
	janitorRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upl_janitor_runs_total",
		Help: "Общее количество запусков janitor",
	})

	janitorRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upl_janitor_removed_total",
		Help: "Общее количество удалённых janitor объектов",
	}, []string{"kind"})

	janitorDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "upl_janitor_duration_seconds",
		Help:    "Длительность выполнения janitor в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// JanitorResult — результат одного запуска janitor.
type JanitorResult struct {
	// WALRemoved — удалено завершённых WAL-записей
	WALRemoved int
	// TempRemoved — удалено осиротевших временных файлов
	TempRemoved int
	// Errors — количество ошибок
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// JanitorService — сервис фоновой уборки.
type JanitorService struct {
	walEngine  *wal.WAL
	store      *filestore.FileStore
	retention  time.Duration
	tempMaxAge time.Duration
	interval   time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewJanitorService создаёт сервис уборки.
func NewJanitorService(
	walEngine *wal.WAL,
	store *filestore.FileStore,
	retention, tempMaxAge, interval time.Duration,
	logger *slog.Logger,
) *JanitorService {
	return &JanitorService{
		walEngine:  walEngine,
		store:      store,
		retention:  retention,
		tempMaxAge: tempMaxAge,
		interval:   interval,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "janitor")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (j *JanitorService) Start(ctx context.Context) {
	jCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	go j.run(jCtx)

	j.logger.Info("Janitor запущен",
		slog.String("interval", j.interval.String()),
		slog.String("retention", j.retention.String()),
	)
}

// Stop останавливает фоновый процесс.
func (j *JanitorService) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.logger.Info("Janitor остановлен")
}

func (j *JanitorService) run(ctx context.Context) {
	j.RunOnce()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл уборки.
func (j *JanitorService) RunOnce() *JanitorResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	result := &JanitorResult{}
	now := j.now()

	// Фаза 1: завершённые WAL-записи
	removed, err := j.walEngine.CleanCommitted(now.Add(-j.retention))
	if err != nil {
		j.logger.Error("Janitor: ошибка очистки WAL",
			slog.String("error", err.Error()),
		)
		result.Errors++
	}
	result.WALRemoved = removed

	// Фаза 2: осиротевшие временные файлы
	tempRemoved, tempErrors := j.sweepTemp(now.Add(-j.tempMaxAge))
	result.TempRemoved = tempRemoved
	result.Errors += tempErrors

	result.Duration = time.Since(start)

	janitorRunsTotal.Inc()
	janitorRemovedTotal.WithLabelValues("wal").Add(float64(result.WALRemoved))
	janitorRemovedTotal.WithLabelValues("temp").Add(float64(result.TempRemoved))
	janitorDurationSeconds.Observe(result.Duration.Seconds())

	j.logger.Info("Janitor завершён",
		slog.Int("wal_removed", result.WALRemoved),
		slog.Int("temp_removed", result.TempRemoved),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// sweepTemp удаляет временные файлы загрузок, изменённые раньше before.
func (j *JanitorService) sweepTemp(before time.Time) (removed, errs int) {
	walkErr := filepath.WalkDir(j.store.Root(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Каталог мог исчезнуть между чтением и обходом
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !filestore.IsTempName(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil || !info.ModTime().Before(before) {
			return nil
		}

		if err := j.store.RemoveTemp(p); err != nil {
			j.logger.Warn("Janitor: ошибка удаления временного файла",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
			errs++
			return nil
		}
		j.logger.Debug("Janitor: временный файл удалён", slog.String("path", p))
		removed++
		return nil
	})
	if walkErr != nil {
		j.logger.Error("Janitor: ошибка обхода публичного каталога",
			slog.String("error", walkErr.Error()),
		)
		errs++
	}
	return removed, errs
}
