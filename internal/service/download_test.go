package service

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/ebidding/upload-service/internal/storage/filestore"
)

func setupDownload(t *testing.T) (*filestore.FileStore, *DownloadService) {
	t.Helper()

	store, err := filestore.New(filepath.Join(t.TempDir(), "public"))
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}
	if _, err := store.EnsureDir("uploads/profile"); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if err := os.WriteFile(store.FullPath("uploads/profile/a.png"), pngPayload("body"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return store, NewDownloadService(store, NewChecksumCache(10, time.Minute), testLogger())
}

func TestDownloadServe_OK(t *testing.T) {
	store, svc := setupDownload(t)

	req := httptest.NewRequest(http.MethodGet, "/public/uploads/profile/a.png", nil)
	rec := httptest.NewRecorder()

	if derr := svc.Serve(rec, req, "uploads/profile/a.png"); derr != nil {
		t.Fatalf("Serve: %v", derr)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("статус %d, ожидался 200", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != string(pngPayload("body")) {
		t.Error("тело ответа не совпадает с файлом")
	}

	sum, err := store.ComputeChecksum("uploads/profile/a.png")
	if err != nil {
		t.Fatalf("ComputeChecksum: %v", err)
	}
	etag := fmt.Sprintf("%q", sum)
	if rec.Header().Get("ETag") != etag {
		t.Errorf("ETag = %q, ожидался %q", rec.Header().Get("ETag"), etag)
	}

	// Повторный запрос с If-None-Match → 304
	req = httptest.NewRequest(http.MethodGet, "/public/uploads/profile/a.png", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	if derr := svc.Serve(rec, req, "uploads/profile/a.png"); derr != nil {
		t.Fatalf("Serve: %v", derr)
	}
	if rec.Code != http.StatusNotModified {
		t.Errorf("статус %d, ожидался 304", rec.Code)
	}
}

func TestDownloadServe_Range(t *testing.T) {
	_, svc := setupDownload(t)

	req := httptest.NewRequest(http.MethodGet, "/public/uploads/profile/a.png", nil)
	req.Header.Set("Range", "bytes=0-3")
	rec := httptest.NewRecorder()

	if derr := svc.Serve(rec, req, "uploads/profile/a.png"); derr != nil {
		t.Fatalf("Serve: %v", derr)
	}
	if rec.Code != http.StatusPartialContent {
		t.Errorf("статус %d, ожидался 206", rec.Code)
	}
	if rec.Body.Len() != 4 {
		t.Errorf("длина тела %d, ожидалось 4", rec.Body.Len())
	}
}

func TestDownloadServe_Errors(t *testing.T) {
	store, svc := setupDownload(t)

	tmp := store.TempPath("uploads/profile")
	if err := os.WriteFile(tmp, []byte("partial"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"нет файла", "uploads/profile/missing.png", http.StatusNotFound},
		{"каталог", "uploads/profile", http.StatusNotFound},
		{"временный файл", "uploads/profile/" + filepath.Base(tmp), http.StatusBadRequest},
		{"выход из корня", "../secret", http.StatusBadRequest},
		{"пустой путь", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/public/x", nil)
			rec := httptest.NewRecorder()

			derr := svc.Serve(rec, req, tt.path)
			if derr == nil {
				t.Fatal("ожидалась ошибка")
			}
			if derr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, ожидался %d", derr.StatusCode, tt.status)
			}
		})
	}
}
