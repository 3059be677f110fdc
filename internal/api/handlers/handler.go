// handler.go — APIHandler собирает доменные handlers и регистрирует
// их маршруты в chi.Router.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/ebidding/upload-service/internal/api/errors"
)

// APIHandler — единая точка регистрации всех endpoints.
type APIHandler struct {
	upload  *UploadHandler
	files   *FilesHandler
	auction *AuctionHandler
	system  *SystemHandler
	health  *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	upload *UploadHandler,
	files *FilesHandler,
	auction *AuctionHandler,
	system *SystemHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		upload:  upload,
		files:   files,
		auction: auction,
		system:  system,
		health:  health,
	}
}

// Register монтирует маршруты в router.
func (h *APIHandler) Register(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.NotFound(w, "Ресурс не найден")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		errors.MethodNotAllowed(w, "Метод не поддерживается")
	})

	// --- Upload ---
	r.Post("/api/upload", h.upload.UploadFile)

	// --- Public files ---
	r.Get("/public/*", h.files.ServePublic)
	r.Head("/public/*", h.files.ServePublic)

	// --- Auction (заглушки) ---
	r.Route("/api/auction", func(r chi.Router) {
		r.Get("/", h.auction.List)
		r.Post("/", h.auction.Create)
		r.Get("/{id}", h.auction.Get)
		r.Put("/{id}", h.auction.Update)
		r.Delete("/{id}", h.auction.Delete)
	})

	// --- System ---
	r.Get("/api/v1/info", h.system.GetInfo)

	// --- Health ---
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
}
