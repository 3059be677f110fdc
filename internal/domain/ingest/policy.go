package ingest

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// PublicDir — сегмент под корнем приложения, из которого раздаются файлы.
	PublicDir = "public"
	// DefaultUploadPath — каталог загрузки, если uploadPath не передан.
	DefaultUploadPath = "uploads/profile"
	// DefaultMaxFileSize — потолок размера одного файла (5 MiB).
	DefaultMaxFileSize int64 = 5 * 1024 * 1024
	// NotAnImageMessage — текст отказа по MIME-типу.
	NotAnImageMessage = "Not an image! Please upload an image."

	imagePrefix    = "image/"
	maxFilenameLen = 255
	fallbackName   = "file"
)

// ErrInvalidPath — uploadPath или fileName не прошли проверку.
var ErrInvalidPath = errors.New("недопустимый путь")

// Policy — неизменяемые параметры приёма файлов. Создаётся один раз
// при старте и передаётся по значению.
type Policy struct {
	root              string
	defaultUploadPath string
	maxFileSize       int64
	now               func() time.Time
}

// NewPolicy проверяет параметры и возвращает Policy.
// root приводится к абсолютному пути. now == nil означает time.Now.
func NewPolicy(root, defaultUploadPath string, maxFileSize int64, now func() time.Time) (Policy, error) {
	if root == "" {
		return Policy{}, fmt.Errorf("корень приложения не задан")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Policy{}, fmt.Errorf("корень приложения %q: %w", root, err)
	}
	if defaultUploadPath == "" {
		defaultUploadPath = DefaultUploadPath
	}
	cleanDefault, err := CleanRelative(defaultUploadPath)
	if err != nil {
		return Policy{}, fmt.Errorf("каталог по умолчанию %q: %w", defaultUploadPath, err)
	}
	if maxFileSize <= 0 {
		return Policy{}, fmt.Errorf("максимальный размер файла должен быть положительным, получено %d", maxFileSize)
	}
	if now == nil {
		now = time.Now
	}
	return Policy{
		root:              absRoot,
		defaultUploadPath: cleanDefault,
		maxFileSize:       maxFileSize,
		now:               now,
	}, nil
}

// Root возвращает абсолютный корень приложения.
func (p Policy) Root() string { return p.root }

// PublicRoot возвращает <root>/public.
func (p Policy) PublicRoot() string { return filepath.Join(p.root, PublicDir) }

// DefaultUploadPath возвращает каталог загрузки по умолчанию.
func (p Policy) DefaultUploadPath() string { return p.defaultUploadPath }

// MaxFileSize возвращает потолок размера файла в байтах.
func (p Policy) MaxFileSize() int64 { return p.maxFileSize }

// Now возвращает текущее время по часам политики.
func (p Policy) Now() time.Time { return p.now() }

// IsImage — проверка объявленного MIME-типа: префикс "image/".
// Содержимое файла не анализируется.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, imagePrefix)
}

// UploadPath возвращает очищенный относительный каталог (через "/").
// Пустое значение заменяется каталогом по умолчанию.
func (p Policy) UploadPath(raw string) (string, error) {
	if raw == "" {
		return p.defaultUploadPath, nil
	}
	return CleanRelative(raw)
}

// Destination возвращает абсолютный каталог <root>/public/<rel>.
// rel должен быть результатом UploadPath.
func (p Policy) Destination(rel string) string {
	return filepath.Join(p.PublicRoot(), filepath.FromSlash(rel))
}

// Filename определяет итоговое имя файла. Явное имя используется как
// есть (после проверки); иначе "<unixMillis>-<original>". Слишком
// длинное исходное имя сокращается по символам с сохранением расширения.
func (p Policy) Filename(explicit, original string) (string, error) {
	if explicit != "" {
		if err := ValidateFilename(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	prefix := fmt.Sprintf("%d-", p.now().UnixMilli())
	return prefix + fitName(baseName(original), maxFilenameLen-len(prefix)), nil
}

// fitName укорачивает name до limit байт по границе символа UTF-8.
// Сокращается основа имени, расширение сохраняется, если помещается.
func fitName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if len(ext) >= limit {
		return truncateUTF8(name, limit)
	}
	stem := strings.TrimSuffix(name, ext)
	return truncateUTF8(stem, limit-len(ext)) + ext
}

// truncateUTF8 обрезает s до n байт, не разрывая многобайтовый символ.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ValidateFilename отклоняет имена с разделителями пути, NUL,
// "."/".." и скрытые имена (с точкой в начале заняты временными файлами).
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: пустое имя файла", ErrInvalidPath)
	case len(name) > maxFilenameLen:
		return fmt.Errorf("%w: имя файла длиннее %d байт", ErrInvalidPath, maxFilenameLen)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: имя файла содержит NUL", ErrInvalidPath)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: имя файла %q содержит разделитель пути", ErrInvalidPath, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: имя файла %q начинается с точки", ErrInvalidPath, name)
	}
	return nil
}

// CleanRelative проверяет и нормализует относительный путь (через "/"):
// запрещены абсолютные пути, NUL, сегменты ".." и скрытые сегменты.
func CleanRelative(raw string) (string, error) {
	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("%w: путь содержит NUL", ErrInvalidPath)
	}
	slashed := strings.ReplaceAll(raw, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(raw) || filepath.VolumeName(raw) != "" {
		return "", fmt.Errorf("%w: абсолютный путь %q", ErrInvalidPath, raw)
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: путь %q содержит \"..\"", ErrInvalidPath, raw)
		}
		if strings.HasPrefix(seg, ".") && seg != "." {
			return "", fmt.Errorf("%w: путь %q содержит скрытый сегмент", ErrInvalidPath, raw)
		}
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", fmt.Errorf("%w: путь %q пуст после нормализации", ErrInvalidPath, raw)
	}
	return cleaned, nil
}

// baseName оставляет последний сегмент исходного имени файла.
func baseName(original string) string {
	original = strings.ReplaceAll(original, `\`, "/")
	original = strings.ReplaceAll(original, "\x00", "")
	name := path.Base(original)
	if name == "." || name == "/" || name == ".." || name == "" {
		return fallbackName
	}
	return name
}
