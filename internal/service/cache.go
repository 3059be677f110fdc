// cache.go — LRU-кэш SHA-256 сохранённых файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upl_checksum_cache_hits_total",
		Help: "Общее количество попаданий в кэш контрольных сумм.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upl_checksum_cache_misses_total",
		Help: "Общее количество промахов кэша контрольных сумм.",
	})
)

// ChecksumEntry — контрольная сумма файла и признаки его версии.
type ChecksumEntry struct {
	Checksum string
	Size     int64
	ModTime  time.Time
}

// ChecksumCache — LRU-кэш контрольных сумм по относительному пути файла.
// Запись действительна, только пока размер и время модификации файла
// совпадают с сохранёнными: перезапись файла делает её промахом.
type ChecksumCache struct {
	cache *expirable.LRU[string, ChecksumEntry]
}

// NewChecksumCache создаёт кэш с указанным максимальным размером и TTL.
func NewChecksumCache(maxSize int, ttl time.Duration) *ChecksumCache {
	return &ChecksumCache{
		cache: expirable.NewLRU[string, ChecksumEntry](maxSize, nil, ttl),
	}
}

// Get возвращает контрольную сумму для relPath, если файл не менялся.
// Обновляет Prometheus-метрики hit/miss.
func (c *ChecksumCache) Get(relPath string, size int64, modTime time.Time) (string, bool) {
	entry, ok := c.cache.Get(relPath)
	if ok && entry.Size == size && entry.ModTime.Equal(modTime) {
		cacheHitsTotal.Inc()
		return entry.Checksum, true
	}
	if ok {
		// Файл перезаписан — запись устарела
		c.cache.Remove(relPath)
	}
	cacheMissesTotal.Inc()
	return "", false
}

// Set добавляет или обновляет запись.
func (c *ChecksumCache) Set(relPath string, entry ChecksumEntry) {
	c.cache.Add(relPath, entry)
}

// Len возвращает количество записей.
func (c *ChecksumCache) Len() int {
	return c.cache.Len()
}
