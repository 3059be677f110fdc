// Пакет wal — файловый Write-Ahead Log загрузок.
// Каждая транзакция — отдельный файл {tx_id}.wal.json в UPL_WAL_DIR.
// Pending запись указывает на временный файл, который нужно удалить,
// если процесс упал до commit или rollback.
package wal

import (
	"time"
)

// OperationType — тип операции, записываемой в WAL.
type OperationType string

const (
	// OpIngest — приём файла: temp файл → rename на итоговый путь
	OpIngest OperationType = "ingest"
)

// TransactionStatus — статус транзакции WAL.
type TransactionStatus string

const (
	// StatusPending — транзакция начата, операция в процессе
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — транзакция успешно завершена
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — транзакция отменена (ошибка или восстановление после сбоя)
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Entry — запись WAL. Хранится как JSON-файл {tx_id}.wal.json.
type Entry struct {
	// TransactionID — уникальный идентификатор транзакции (UUID v4)
	TransactionID string `json:"transaction_id"`

	// Operation — тип операции
	Operation OperationType `json:"operation"`

	// Status — текущий статус транзакции
	Status TransactionStatus `json:"status"`

	// TargetPath — итоговый путь файла относительно публичного корня
	TargetPath string `json:"target_path"`

	// TempPath — абсолютный путь временного файла
	TempPath string `json:"temp_path"`

	// StartedAt — время начала транзакции (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения транзакции (UTC).
	// nil для pending транзакций.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Reason — причина отката (только rolled_back)
	Reason string `json:"reason,omitempty"`
}

// walFileName возвращает имя файла WAL для данной транзакции.
func walFileName(txID string) string {
	return txID + ".wal.json"
}
