// files.go — раздача сохранённых файлов GET/HEAD /public/*.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/ebidding/upload-service/internal/api/errors"
	"github.com/bigkaa/ebidding/upload-service/internal/service"
)

// FilesHandler — обработчик публичных файлов.
type FilesHandler struct {
	downloadSvc *service.DownloadService
}

// NewFilesHandler создаёт обработчик публичных файлов.
func NewFilesHandler(downloadSvc *service.DownloadService) *FilesHandler {
	return &FilesHandler{downloadSvc: downloadSvc}
}

// ServePublic обрабатывает GET/HEAD /public/*.
// Поддерживает Range requests (206) и ETag (If-None-Match → 304).
func (h *FilesHandler) ServePublic(w http.ResponseWriter, r *http.Request) {
	if derr := h.downloadSvc.Serve(w, r, chi.URLParam(r, "*")); derr != nil {
		errors.WriteError(w, derr.StatusCode, derr.Code, derr.Message)
	}
}
