// Пакет filestore — операции с загруженными файлами на диске.
// Обеспечивает streaming-запись с ограничением размера и подсчётом
// SHA-256 на лету, чтение и получение информации о файлах.
//
// Все пути — относительные к публичному корню (<root>/public),
// разделитель "/".
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTooLarge — поток длиннее допустимого размера.
	ErrTooLarge = errors.New("превышен максимальный размер файла")
	// ErrNotFound — файл отсутствует.
	ErrNotFound = errors.New("файл не найден")
)

const (
	dirPerm  = 0o750
	filePerm = 0o640

	tempPrefix = ".upload-"
	tempSuffix = ".tmp"
)

// FileStore — управление файлами под публичным корнем.
type FileStore struct {
	// root — абсолютный публичный корень (<app root>/public)
	root string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// RelPath — путь файла относительно публичного корня
	RelPath string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
	// ModTime — время модификации итогового файла
	ModTime time.Time
}

// New создаёт FileStore. Создаёт публичный корень, если его нет.
func New(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("не удалось создать публичную директорию %s: %w", root, err)
	}

	return &FileStore{root: root}, nil
}

// Root возвращает публичный корень.
func (fs *FileStore) Root() string {
	return fs.root
}

// FullPath возвращает абсолютный путь для относительного пути.
func (fs *FileStore) FullPath(rel string) string {
	return filepath.Join(fs.root, filepath.FromSlash(rel))
}

// EnsureDir рекурсивно создаёт каталог rel. Существующий каталог
// не считается ошибкой, в том числе при одновременных вызовах.
func (fs *FileStore) EnsureDir(rel string) (string, error) {
	dir := fs.FullPath(rel)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return dir, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}
	return dir, nil
}

// TempPath возвращает уникальный путь временного файла в каталоге dir.
// Временные файлы скрыты (точка в начале имени) и не раздаются.
func (fs *FileStore) TempPath(dir string) string {
	return filepath.Join(fs.FullPath(dir), tempPrefix+uuid.NewString()+tempSuffix)
}

// IsTempName сообщает, является ли имя временным файлом загрузки.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix)
}

// SaveFile записывает данные из reader в dir/name с подсчётом SHA-256.
// Читается не больше maxSize+1 байт: если поток длиннее maxSize,
// возвращается ErrTooLarge и на диске ничего не остаётся.
//
// Паттерн: temp файл (tmpPath) → запись + SHA-256 → fsync → atomic rename.
// Rename поверх существующего файла заменяет его целиком.
// При любой ошибке temp файл удаляется.
func (fs *FileStore) SaveFile(reader io.Reader, dir, name, tmpPath string, maxSize int64) (*SaveResult, error) {
	rel := filepath.ToSlash(filepath.Join(filepath.FromSlash(dir), name))
	fullPath := fs.FullPath(rel)

	// Создаём temp файл; O_EXCL — путь уникален для каждой загрузки
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла %s: %w", tmpPath, err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	limited := io.LimitReader(reader, maxSize+1)

	size, err := io.Copy(io.MultiWriter(f, hasher), limited)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if size > maxSize {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: больше %d байт", ErrTooLarge, maxSize)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения информации о файле %s: %w", rel, err)
	}

	return &SaveResult{
		RelPath:  rel,
		FullPath: fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		ModTime:  info.ModTime(),
	}, nil
}

// RemoveTemp удаляет временный файл по абсолютному пути.
// Пути вне публичного корня и не временные имена отклоняются.
// Отсутствие файла не считается ошибкой.
func (fs *FileStore) RemoveTemp(tmpPath string) error {
	relPath, err := filepath.Rel(fs.root, tmpPath)
	if err != nil || strings.HasPrefix(relPath, "..") || !IsTempName(filepath.Base(tmpPath)) {
		return fmt.Errorf("путь %s не является временным файлом хранилища", tmpPath)
	}
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления временного файла %s: %w", tmpPath, err)
	}
	return nil
}

// ReadFile открывает файл rel для чтения вместе с его os.FileInfo.
// Каталоги считаются отсутствующими. Вызывающий код обязан закрыть файл.
func (fs *FileStore) ReadFile(rel string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(fs.FullPath(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", rel, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка получения информации о файле %s: %w", rel, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}

	return f, info, nil
}

// ComputeChecksum вычисляет SHA-256 хэш существующего файла.
func (fs *FileStore) ComputeChecksum(rel string) (string, error) {
	f, err := os.Open(fs.FullPath(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return "", fmt.Errorf("ошибка открытия файла %s: %w", rel, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("ошибка вычисления checksum %s: %w", rel, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
