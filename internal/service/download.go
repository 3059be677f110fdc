// download.go — раздача сохранённых файлов из <root>/public.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	apierrors "github.com/bigkaa/ebidding/upload-service/internal/api/errors"
	"github.com/bigkaa/ebidding/upload-service/internal/domain/ingest"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/filestore"
)

// DownloadService — сервис раздачи файлов.
type DownloadService struct {
	store  *filestore.FileStore
	cache  *ChecksumCache
	logger *slog.Logger
}

// NewDownloadService создаёт сервис раздачи файлов.
func NewDownloadService(
	store *filestore.FileStore,
	cache *ChecksumCache,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// DownloadError — ошибка раздачи с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Serve отдаёт файл rawPath (относительно публичного корня) через
// http.ServeContent. Поддерживает Range, If-None-Match и If-Modified-Since.
// ETag — SHA-256 содержимого из кэша или вычисленный заново.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, rawPath string) *DownloadError {
	rel, err := ingest.CleanRelative(rawPath)
	if err != nil {
		return &DownloadError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Недопустимый путь: %s", err.Error()),
		}
	}

	// Временные файлы загрузок не раздаются
	if filestore.IsTempName(path.Base(rel)) {
		return notFound(rel)
	}

	file, info, err := s.store.ReadFile(rel)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return notFound(rel)
		}
		s.logger.Error("Ошибка открытия файла",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}
	defer file.Close()

	checksum, ok := s.cache.Get(rel, info.Size(), info.ModTime())
	if !ok {
		checksum, err = s.store.ComputeChecksum(rel)
		if err != nil {
			// Без ETag файл всё равно можно отдать
			s.logger.Warn("Не удалось вычислить checksum",
				slog.String("path", rel),
				slog.String("error", err.Error()),
			)
		} else {
			s.cache.Set(rel, ChecksumEntry{
				Checksum: checksum,
				Size:     info.Size(),
				ModTime:  info.ModTime(),
			})
		}
	}

	if checksum != "" {
		w.Header().Set("ETag", fmt.Sprintf("%q", checksum))
	}
	w.Header().Set("Accept-Ranges", "bytes")

	// Content-Type определяется по расширению или содержимому
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)

	s.logger.Debug("Файл отдан",
		slog.String("path", rel),
		slog.Int64("size", info.Size()),
	)
	return nil
}

func notFound(rel string) *DownloadError {
	return &DownloadError{
		StatusCode: http.StatusNotFound,
		Code:       apierrors.CodeNotFound,
		Message:    fmt.Sprintf("Файл %s не найден", rel),
	}
}
