package service

import (
	"log/slog"

	"github.com/bigkaa/ebidding/upload-service/internal/storage/filestore"
	"github.com/bigkaa/ebidding/upload-service/internal/storage/wal"
)

// RecoverReason — причина отката транзакций, найденных при старте.
const RecoverReason = "recovered_after_crash"

// RecoverIngests откатывает незавершённые WAL-транзакции загрузки:
// удаляет их временные файлы и помечает записи rolled_back.
// Итоговые файлы не трогаются — rename либо произошёл, либо нет.
// Возвращает количество откаченных транзакций.
func RecoverIngests(walEngine *wal.WAL, store *filestore.FileStore, logger *slog.Logger) (int, error) {
	log := logger.With(slog.String("component", "recovery"))

	pending, err := walEngine.RecoverPending()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, entry := range pending {
		if entry.Operation != wal.OpIngest {
			continue
		}

		if entry.TempPath != "" {
			if err := store.RemoveTemp(entry.TempPath); err != nil {
				log.Warn("Не удалось удалить временный файл",
					slog.String("tx_id", entry.TransactionID),
					slog.String("temp_path", entry.TempPath),
					slog.String("error", err.Error()),
				)
			}
		}

		if err := walEngine.Rollback(entry.TransactionID, RecoverReason); err != nil {
			log.Error("Не удалось откатить транзакцию",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", err.Error()),
			)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		log.Info("Незавершённые загрузки откачены",
			slog.Int("count", recovered),
		)
	}
	return recovered, nil
}
