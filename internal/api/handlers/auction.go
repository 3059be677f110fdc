// auction.go — заглушки /api/auction. Логики торгов и хранения нет:
// ответы только подтверждают маршрут и форму запроса.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bigkaa/ebidding/upload-service/internal/api/errors"
)

// AuctionHandler — заглушки endpoints аукционов.
type AuctionHandler struct{}

// NewAuctionHandler создаёт заглушки endpoints аукционов.
func NewAuctionHandler() *AuctionHandler {
	return &AuctionHandler{}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// List обрабатывает GET /api/auction.
func (h *AuctionHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": []any{},
		"total": 0,
	})
}

// Create обрабатывает POST /api/auction: возвращает тело запроса с новым id.
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	body["id"] = uuid.NewString()
	writeJSON(w, http.StatusCreated, body)
}

// Get обрабатывает GET /api/auction/{id}.
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

// Update обрабатывает PUT /api/auction/{id}.
func (h *AuctionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}
	body["id"] = id
	writeJSON(w, http.StatusOK, body)
}

// Delete обрабатывает DELETE /api/auction/{id}.
func (h *AuctionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// auctionID извлекает и проверяет {id} (UUID).
func auctionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errors.ValidationError(w, "Параметр id должен быть UUID")
		return "", false
	}
	return id.String(), true
}

// decodeObject читает JSON-объект из тела запроса (не больше 1 MiB).
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body := map[string]any{}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body)
	// null декодируется в nil map
	if err != nil || body == nil {
		errors.ValidationError(w, "Тело запроса должно быть JSON-объектом")
		return nil, false
	}
	return body, true
}
