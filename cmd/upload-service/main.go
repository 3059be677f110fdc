// Точка входа Upload Service — приёма изображений e-bidding.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/bigkaa/ebidding/upload-service/internal/api/handlers"
	"github.com/bigkaa/ebidding/upload-service/internal/config"
	"github.com/bigkaa/ebidding/upload-service/internal/domain/ingest"
	"github.com/bigkaa/ebidding/upload-service/internal/server"
	"github.com/bigkaa/ebidding/upload-service/internal/service"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/filestore"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/mirror"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/wal"
)

// defaultDephealthName — имя вершины графа, если hostname недоступен.
const defaultDephealthName = "upload-service"

func main() {
	// .env — только для локального запуска, в кластере его нет
	loaded, err := config.LoadEnvFile(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка чтения .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Upload Service запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("app_root", cfg.AppRoot),
		slog.String("default_upload_path", cfg.DefaultUploadPath),
		slog.Int64("max_file_size", cfg.MaxFileSize),
		slog.Bool("env_file", loaded),
	)

	// --- Инициализация компонентов ---

	// 1. Политика приёма
	policy, err := ingest.NewPolicy(cfg.AppRoot, cfg.DefaultUploadPath, cfg.MaxFileSize, nil)
	if err != nil {
		logger.Error("Ошибка политики приёма", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Файловое хранилище под <root>/public
	store, err := filestore.New(policy.PublicRoot())
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. WAL-движок и откат незавершённых приёмов
	walEngine, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации WAL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := service.RecoverIngests(walEngine, store, logger); err != nil {
		logger.Error("Ошибка восстановления WAL", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Кэш контрольных сумм для ETag
	cache := service.NewChecksumCache(cfg.CacheSize, cfg.CacheTTL)

	ctx := context.Background()

	// 5. Хранилище копий (опционально)
	var mir mirror.Mirror
	if cfg.MirrorEnabled() {
		opts := mirrorOptions(cfg)
		minioMirror, mirErr := mirror.NewMinio(ctx, opts, logger)
		if mirErr != nil {
			logger.Warn("Хранилище копий недоступно, запуск без зеркалирования",
				slog.String("endpoint", cfg.MirrorEndpoint),
				slog.String("error", mirErr.Error()),
			)
		} else {
			mir = minioMirror
			logger.Info("Зеркалирование включено",
				slog.String("endpoint", cfg.MirrorEndpoint),
				slog.String("bucket", cfg.MirrorBucket),
			)
		}
	}

	// 6. Сервисы
	uploadSvc := service.NewUploadService(policy, store, walEngine, cache, mir, logger)
	downloadSvc := service.NewDownloadService(store, cache, logger)

	// 7. Фоновые процессы

	// 7.1 Janitor — очистка WAL и брошенных временных файлов
	janitorSvc := service.NewJanitorService(
		walEngine, store,
		cfg.WALRetention, cfg.TempMaxAge, cfg.JanitorInterval,
		logger,
	)
	janitorSvc.Start(ctx)

	// 7.2 topologymetrics — мониторинг хранилища копий
	var (
		dephealthSvc *service.DephealthService
		deps         handlers.DependencyHealth
	)
	if cfg.MirrorEnabled() {
		name := dephealthName(cfg.DephealthName)
		dephealthSvc, err = service.NewDephealthService(
			name,
			cfg.DephealthGroup,
			mirrorOptions(cfg).URL(),
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			deps = dephealthSvc
			logger.Info("topologymetrics запущен",
				slog.String("name", name),
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 8. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewUploadHandler(uploadSvc, logger),
		handlers.NewFilesHandler(downloadSvc),
		handlers.NewAuctionHandler(),
		handlers.NewSystemHandler(policy, walEngine, getDiskUsage, deps, logger),
		handlers.NewHealthHandler(policy.PublicRoot(), cfg.WALDir),
	)

	// 9. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler)
	runErr := srv.Run(ctx)

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	janitorSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("Upload Service остановлен")
}

// mirrorOptions переводит конфигурацию в параметры MinIO.
func mirrorOptions(cfg *config.Config) mirror.Options {
	return mirror.Options{
		Endpoint:  cfg.MirrorEndpoint,
		AccessKey: cfg.MirrorAccessKey,
		SecretKey: cfg.MirrorSecretKey,
		Bucket:    cfg.MirrorBucket,
		UseSSL:    cfg.MirrorUseSSL,
		Timeout:   cfg.MirrorTimeout,
	}
}

// dephealthName возвращает имя вершины графа: явное DEPHEALTH_NAME,
// иначе имя владельца пода из hostname.
func dephealthName(configured string) string {
	if configured != "" {
		return configured
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return defaultDephealthName
	}
	return parseOwnerName(hostname)
}

var (
	// <deployment>-<replicaset hash>-<pod suffix>
	deploymentPodRe = regexp.MustCompile(`^(.+)-[a-z0-9]{6,10}-[a-z0-9]{5}$`)
	// <statefulset>-<ordinal>
	statefulSetPodRe = regexp.MustCompile(`^(.+)-[0-9]+$`)
)

// parseOwnerName извлекает имя Deployment или StatefulSet из hostname пода.
// Hostname, не похожий на имя пода, возвращается как есть.
func parseOwnerName(hostname string) string {
	if m := deploymentPodRe.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	if m := statefulSetPodRe.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	return hostname
}
