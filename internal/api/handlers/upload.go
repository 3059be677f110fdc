// upload.go — HTTP handler приёма файлов POST /api/upload.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bigkaa/ebidding/upload-service/internal/api/errors"
	"github.com/bigkaa/ebidding/upload-service/internal/domain/model"
	"github.com/bigkaa/ebidding/upload-service/internal/service"
)

const (
	// multipartOverhead — запас на заголовки частей и текстовые поля формы.
	multipartOverhead = 1 << 20
	// multipartMemory — объём формы, хранимый в памяти (остальное во временных файлах).
	multipartMemory = 8 << 20
)

// UploadHandler — обработчик загрузки файлов.
type UploadHandler struct {
	uploadSvc *service.UploadService
	logger    *slog.Logger
}

// NewUploadHandler создаёт обработчик загрузки файлов.
func NewUploadHandler(uploadSvc *service.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploadSvc: uploadSvc,
		logger:    logger.With(slog.String("component", "upload_handler")),
	}
}

// UploadFile обрабатывает POST /api/upload.
// Multipart form: file (обязательно), uploadPath и fileName (опционально).
func (h *UploadHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	maxSize := h.uploadSvc.Policy().MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if stderrors.As(err, &mbe) {
			errors.PayloadTooLarge(w, fmt.Sprintf("Размер файла превышает максимум %d байт", maxSize))
			return
		}
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	stored, err := h.uploadSvc.Ingest(r.Context(), model.UploadRequest{
		Reader:           file,
		OriginalFilename: header.Filename,
		ContentType:      header.Header.Get("Content-Type"),
		UploadPath:       r.FormValue("uploadPath"),
		FileName:         r.FormValue("fileName"),
	})
	if err != nil {
		var uerr *service.UploadError
		if stderrors.As(err, &uerr) {
			writeUploadError(w, uerr)
			return
		}
		h.logger.Error("Неожиданная ошибка загрузки", slog.String("error", err.Error()))
		errors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", stored.URL)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(stored)
}

// writeUploadError отображает категорию ошибки загрузки в ответ API.
func writeUploadError(w http.ResponseWriter, uerr *service.UploadError) {
	switch uerr.Kind {
	case service.ErrUnsupportedMediaType:
		errors.UnsupportedMediaType(w, uerr.Message)
	case service.ErrPayloadTooLarge:
		errors.PayloadTooLarge(w, uerr.Message)
	case service.ErrStorageUnavailable:
		errors.StorageUnavailable(w, uerr.Message)
	case service.ErrInvalidPath:
		errors.ValidationError(w, uerr.Message)
	default:
		errors.WriteError(w, uerr.StatusCode, uerr.Code, uerr.Message)
	}
}
