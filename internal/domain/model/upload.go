// Пакет model — доменные модели сервиса загрузок.
package model

import (
	"io"
	"time"
)

// UploadRequest — одна входящая загрузка. Живёт в пределах запроса.
type UploadRequest struct {
	// Reader — поток байтов файла
	Reader io.Reader
	// OriginalFilename — имя файла у отправителя
	OriginalFilename string
	// ContentType — объявленный отправителем MIME-тип
	ContentType string
	// UploadPath — относительный каталог назначения (опционально)
	UploadPath string
	// FileName — желаемое имя сохранённого файла (опционально)
	FileName string
}

// StoredFile — сохранённый файл. Возвращается клиенту в ответе на загрузку.
type StoredFile struct {
	// Filename — итоговое имя файла
	Filename string `json:"filename"`
	// UploadPath — относительный каталог под public
	UploadPath string `json:"upload_path"`
	// Path — путь относительно public: <upload_path>/<filename>
	Path string `json:"path"`
	// URL — публичный адрес файла: /public/<path>
	URL string `json:"url"`
	// FullPath — абсолютный путь на диске, наружу не отдаётся
	FullPath string `json:"-"`
	// Size — размер в байтах
	Size int64 `json:"size"`
	// ContentType — объявленный MIME-тип (по нему принято решение)
	ContentType string `json:"content_type"`
	// DetectedType — MIME-тип по сигнатуре содержимого (справочно)
	DetectedType string `json:"detected_type"`
	// Checksum — SHA-256 содержимого
	Checksum string `json:"checksum"`
	// StoredAt — время записи (UTC)
	StoredAt time.Time `json:"stored_at"`
	// Mirrored — файл скопирован во внешнее объектное хранилище
	Mirrored bool `json:"mirrored"`
}
