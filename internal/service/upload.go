// Пакет service — бизнес-логика сервиса загрузок.
// upload.go — приём файла: проверка типа, каталог, имя, запись с WAL.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"

	apierrors "github.com/bigkaa/ebidding/upload-service/internal/api/errors"
	"github.com/bigkaa/ebidding/upload-service/internal/api/middleware"
	"github.com/bigkaa/ebidding/upload-service/internal/domain/ingest"
	"github.com/bigkaa/ebidding/upload-service/internal/domain/model"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/filestore"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/mirror"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/wal"
)

// Категории ошибок загрузки. Проверяются через errors.Is.
var (
	ErrUnsupportedMediaType = errors.New("тип файла не является изображением")
	ErrPayloadTooLarge      = errors.New("файл превышает допустимый размер")
	ErrStorageUnavailable   = errors.New("хранилище недоступно")
	ErrInvalidPath          = ingest.ErrInvalidPath
)

// sniffLen — сколько первых байтов файла сохраняется для определения
// типа по сигнатуре (лимит чтения mimetype по умолчанию).
const sniffLen = 3072

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
	// Kind — категория (ErrUnsupportedMediaType и т.д.)
	Kind error
	// Err — исходная ошибка нижнего уровня (может быть nil)
	Err error
	// Stage — конечное состояние загрузки (rejected или failed)
	Stage ingest.Stage
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает категорию и исходную ошибку для errors.Is/errors.As.
func (e *UploadError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UploadService — сервис приёма файлов.
type UploadService struct {
	policy    ingest.Policy
	store     *filestore.FileStore
	walEngine *wal.WAL
	cache     *ChecksumCache
	mirror    mirror.Mirror
	logger    *slog.Logger
}

// NewUploadService создаёт сервис приёма файлов.
// mir может быть nil — тогда копирование во внешнее хранилище отключено.
func NewUploadService(
	policy ingest.Policy,
	store *filestore.FileStore,
	walEngine *wal.WAL,
	cache *ChecksumCache,
	mir mirror.Mirror,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		policy:    policy,
		store:     store,
		walEngine: walEngine,
		cache:     cache,
		mirror:    mir,
		logger:    logger.With(slog.String("component", "upload_service")),
	}
}

// Policy возвращает параметры приёма.
func (s *UploadService) Policy() ingest.Policy {
	return s.policy
}

// Ingest принимает один файл.
//
// Поток:
//  1. Проверка объявленного MIME-типа (image/*)
//  2. Разрешение и создание каталога назначения
//  3. Определение имени файла
//  4. WAL StartTransaction
//  5. SaveFile (temp → SHA-256 → fsync → rename, лимит размера)
//  6. WAL Commit, кэш контрольной суммы
//  7. Копия во внешнее хранилище (best effort)
//
// Возвращаемая ошибка всегда *UploadError с конечным состоянием
// загрузки в Stage. При любой ошибке на итоговом пути не остаётся
// частично записанного файла.
func (s *UploadService) Ingest(ctx context.Context, req model.UploadRequest) (*model.StoredFile, error) {
	start := time.Now()
	tracker := ingest.NewTracker(s.policy.Now)

	// 1. Проверка объявленного типа
	if !ingest.IsImage(req.ContentType) {
		s.advance(tracker, ingest.StageRejected)
		middleware.UploadsTotal.WithLabelValues("unsupported_media_type").Inc()
		s.logger.Warn("Загрузка отклонена: не изображение",
			slog.String("content_type", req.ContentType),
			slog.String("original_filename", req.OriginalFilename),
			stageAttr(tracker),
		)
		return nil, finish(tracker, &UploadError{
			StatusCode: http.StatusUnsupportedMediaType,
			Code:       apierrors.CodeUnsupportedMediaType,
			Message:    ingest.NotAnImageMessage,
			Kind:       ErrUnsupportedMediaType,
		})
	}
	s.advance(tracker, ingest.StageAccepted)

	// 2. Каталог назначения
	relDir, err := s.policy.UploadPath(req.UploadPath)
	if err != nil {
		return nil, s.invalidPath(tracker, "uploadPath", req.UploadPath, err)
	}
	dir, err := s.store.EnsureDir(relDir)
	if err != nil {
		tracker.Fail()
		middleware.UploadsTotal.WithLabelValues("storage_unavailable").Inc()
		s.logger.Error("Не удалось создать каталог назначения",
			slog.String("path", dir),
			slog.String("error", err.Error()),
			stageAttr(tracker),
		)
		return nil, finish(tracker, storageUnavailable("Каталог назначения недоступен", err))
	}
	s.advance(tracker, ingest.StageDestinationResolved)

	// 3. Имя файла
	name, err := s.policy.Filename(req.FileName, req.OriginalFilename)
	if err != nil {
		return nil, s.invalidPath(tracker, "fileName", req.FileName, err)
	}
	s.advance(tracker, ingest.StageFilenameResolved)
	target := path.Join(relDir, name)

	// 4. WAL StartTransaction
	tmpPath := s.store.TempPath(relDir)
	walEntry, err := s.walEngine.StartTransaction(wal.OpIngest, target, tmpPath)
	if err != nil {
		tracker.Fail()
		middleware.UploadsTotal.WithLabelValues("storage_unavailable").Inc()
		s.logger.Error("Ошибка создания WAL-транзакции",
			slog.String("path", target),
			slog.String("error", err.Error()),
			stageAttr(tracker),
		)
		return nil, finish(tracker, storageUnavailable("Внутренняя ошибка при создании транзакции", err))
	}

	// Откат WAL при ошибке; temp файл SaveFile удаляет сам
	rollback := func(reason string) {
		if rbErr := s.walEngine.Rollback(walEntry.TransactionID, reason); rbErr != nil {
			s.logger.Error("Ошибка отката WAL",
				slog.String("tx_id", walEntry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
	}

	// 5. SaveFile с сохранением начала потока для определения сигнатуры
	head := &headCapture{r: req.Reader, limit: sniffLen}
	saved, err := s.store.SaveFile(head, relDir, name, tmpPath, s.policy.MaxFileSize())
	if err != nil {
		tracker.Fail()
		if isTooLarge(err) {
			rollback("payload_too_large")
			middleware.UploadsTotal.WithLabelValues("payload_too_large").Inc()
			s.logger.Warn("Загрузка отклонена: превышен размер",
				slog.String("path", target),
				slog.Int64("max_size", s.policy.MaxFileSize()),
				stageAttr(tracker),
			)
			return nil, finish(tracker, &UploadError{
				StatusCode: http.StatusRequestEntityTooLarge,
				Code:       apierrors.CodePayloadTooLarge,
				Message:    fmt.Sprintf("Размер файла превышает максимум %d байт", s.policy.MaxFileSize()),
				Kind:       ErrPayloadTooLarge,
				Err:        err,
			})
		}
		rollback("storage_error")
		middleware.UploadsTotal.WithLabelValues("storage_unavailable").Inc()
		s.logger.Error("Ошибка сохранения файла",
			slog.String("path", s.store.FullPath(target)),
			slog.String("error", err.Error()),
			stageAttr(tracker),
		)
		return nil, finish(tracker, storageUnavailable("Ошибка сохранения файла на диск", err))
	}

	// 6. WAL Commit
	if err := s.walEngine.Commit(walEntry.TransactionID); err != nil {
		// Файл уже на итоговом пути, коммит WAL — best effort
		s.logger.Error("Ошибка коммита WAL (данные сохранены)",
			slog.String("tx_id", walEntry.TransactionID),
			slog.String("path", target),
			slog.String("error", err.Error()),
		)
	}
	s.advance(tracker, ingest.StageWritten)

	s.cache.Set(saved.RelPath, ChecksumEntry{
		Checksum: saved.Checksum,
		Size:     saved.Size,
		ModTime:  saved.ModTime,
	})

	// Тип по сигнатуре — только для отчёта, решение принято по заголовку
	detected := mimetype.Detect(head.buf).String()
	if !ingest.IsImage(detected) {
		middleware.ContentTypeMismatchTotal.Inc()
		s.logger.Warn("Содержимое файла не похоже на изображение",
			slog.String("path", target),
			slog.String("declared", req.ContentType),
			slog.String("detected", detected),
		)
	}

	stored := &model.StoredFile{
		Filename:     name,
		UploadPath:   relDir,
		Path:         saved.RelPath,
		URL:          "/" + ingest.PublicDir + "/" + saved.RelPath,
		FullPath:     saved.FullPath,
		Size:         saved.Size,
		ContentType:  req.ContentType,
		DetectedType: detected,
		Checksum:     saved.Checksum,
		StoredAt:     s.policy.Now().UTC(),
	}

	// 7. Копия во внешнее хранилище
	stored.Mirrored = s.mirrorFile(ctx, stored)

	duration := time.Since(start)
	middleware.UploadsTotal.WithLabelValues("success").Inc()
	middleware.UploadedBytesTotal.Add(float64(saved.Size))
	middleware.UploadDuration.Observe(duration.Seconds())

	s.logger.Info("Файл загружен",
		slog.String("path", stored.Path),
		slog.Int64("size", stored.Size),
		slog.String("checksum", stored.Checksum),
		slog.String("content_type", stored.ContentType),
		slog.Bool("mirrored", stored.Mirrored),
		slog.Duration("duration", duration),
		stageAttr(tracker),
	)

	return stored, nil
}

// advance переводит автомат загрузки в target. Недопустимый переход
// означает ошибку в порядке шагов Ingest и только логируется.
func (s *UploadService) advance(tracker *ingest.Tracker, target ingest.Stage) {
	if err := tracker.Advance(target); err != nil {
		s.logger.Error("Недопустимый переход загрузки",
			slog.String("error", err.Error()),
			stageAttr(tracker),
		)
	}
}

// stageAttr — состояние автомата загрузки для логов:
// ingest.stage=failed ingest.trace=received→accepted→failed.
func stageAttr(tracker *ingest.Tracker) slog.Attr {
	return slog.Group("ingest",
		slog.String("stage", string(tracker.Current())),
		slog.String("trace", tracker.Trace()),
	)
}

// finish фиксирует конечное состояние автомата в ошибке загрузки.
func finish(tracker *ingest.Tracker, uerr *UploadError) *UploadError {
	if !tracker.IsTerminal() {
		tracker.Fail()
	}
	uerr.Stage = tracker.Current()
	return uerr
}

// mirrorFile копирует сохранённый файл во внешнее хранилище.
// Ошибки логируются и не влияют на результат загрузки.
func (s *UploadService) mirrorFile(ctx context.Context, stored *model.StoredFile) bool {
	if s.mirror == nil {
		return false
	}

	f, _, err := s.store.ReadFile(stored.Path)
	if err != nil {
		middleware.MirrorTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Не удалось открыть файл для копирования",
			slog.String("path", stored.Path),
			slog.String("error", err.Error()),
		)
		return false
	}
	defer f.Close()

	// Отмена запроса клиентом не должна прерывать копирование
	if err := s.mirror.Put(context.WithoutCancel(ctx), mirror.ObjectKey(stored.Path), f, stored.Size, stored.ContentType); err != nil {
		middleware.MirrorTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Ошибка копирования во внешнее хранилище",
			slog.String("path", stored.Path),
			slog.String("error", err.Error()),
		)
		return false
	}

	middleware.MirrorTotal.WithLabelValues("success").Inc()
	return true
}

// invalidPath — ошибка 400 для uploadPath/fileName.
func (s *UploadService) invalidPath(tracker *ingest.Tracker, field, value string, err error) *UploadError {
	tracker.Fail()
	middleware.UploadsTotal.WithLabelValues("invalid_path").Inc()
	s.logger.Warn("Загрузка отклонена: недопустимый путь",
		slog.String("field", field),
		slog.String("value", value),
		slog.String("error", err.Error()),
		stageAttr(tracker),
	)
	return finish(tracker, &UploadError{
		StatusCode: http.StatusBadRequest,
		Code:       apierrors.CodeValidationError,
		Message:    fmt.Sprintf("Недопустимое значение %s: %s", field, err.Error()),
		Kind:       ErrInvalidPath,
		Err:        err,
	})
}

// storageUnavailable — ошибка 503 хранилища.
func storageUnavailable(message string, err error) *UploadError {
	return &UploadError{
		StatusCode: http.StatusServiceUnavailable,
		Code:       apierrors.CodeStorageUnavailable,
		Message:    message,
		Kind:       ErrStorageUnavailable,
		Err:        err,
	}
}

// isTooLarge — поток длиннее лимита файла или лимита тела запроса.
func isTooLarge(err error) bool {
	if errors.Is(err, filestore.ErrTooLarge) {
		return true
	}
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// headCapture — io.Reader, запоминающий первые limit байтов потока.
type headCapture struct {
	r     io.Reader
	buf   []byte
	limit int
}

func (h *headCapture) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if rem := h.limit - len(h.buf); rem > 0 && n > 0 {
		h.buf = append(h.buf, p[:min(n, rem)]...)
	}
	return n, err
}
