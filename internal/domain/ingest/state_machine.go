// Пакет ingest — правила приёма загружаемого файла: конечный автомат
// одной загрузки, разрешение каталога назначения и имени файла,
// проверка объявленного MIME-типа.
//
// Жизненный цикл одной загрузки:
//
//	received → rejected                                  (не изображение)
//	received → accepted → destination_resolved → filename_resolved → written
//	                    ↘ failed              ↘ failed             ↘ failed
//
// rejected, written и failed — конечные состояния. Автомат живёт
// в пределах одного запроса и не разделяется между горутинами.
package ingest

import (
	"fmt"
	"strings"
	"time"
)

// Stage — состояние одной загрузки.
type Stage string

const (
	// StageReceived — запрос получен, ничего не проверено
	StageReceived Stage = "received"
	// StageAccepted — MIME-тип прошёл проверку
	StageAccepted Stage = "accepted"
	// StageRejected — MIME-тип отклонён (конечное)
	StageRejected Stage = "rejected"
	// StageDestinationResolved — каталог назначения существует
	StageDestinationResolved Stage = "destination_resolved"
	// StageFilenameResolved — итоговое имя файла определено
	StageFilenameResolved Stage = "filename_resolved"
	// StageWritten — файл целиком записан на итоговый путь (конечное)
	StageWritten Stage = "written"
	// StageFailed — ошибка хранилища, размера или пути (конечное)
	StageFailed Stage = "failed"
)

// StageRecord — запись о переходе между состояниями.
type StageRecord struct {
	From      Stage     `json:"from"`
	To        Stage     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// validTransitions — матрица допустимых переходов.
var validTransitions = map[Stage]map[Stage]bool{
	StageReceived:            {StageAccepted: true, StageRejected: true},
	StageAccepted:            {StageDestinationResolved: true, StageFailed: true},
	StageDestinationResolved: {StageFilenameResolved: true, StageFailed: true},
	StageFilenameResolved:    {StageWritten: true, StageFailed: true},
	StageRejected:            {},
	StageWritten:             {},
	StageFailed:              {},
}

// Tracker — конечный автомат одной загрузки.
type Tracker struct {
	current Stage
	now     func() time.Time
	history []StageRecord
}

// NewTracker создаёт автомат в состоянии received.
// now — источник времени для истории; nil означает time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		current: StageReceived,
		now:     now,
		history: make([]StageRecord, 0, 4),
	}
}

// Current возвращает текущее состояние.
func (t *Tracker) Current() Stage {
	return t.current
}

// CanAdvanceTo проверяет, допустим ли переход в target.
func (t *Tracker) CanAdvanceTo(target Stage) bool {
	return validTransitions[t.current][target]
}

// Advance выполняет переход. Недопустимый переход возвращает
// *TransitionError с кодом INVALID_TRANSITION, состояние не меняется.
func (t *Tracker) Advance(target Stage) error {
	if _, ok := validTransitions[target]; !ok {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("неизвестное состояние: %q", target),
		}
	}
	if !t.CanAdvanceTo(target) {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим", t.current, target),
		}
	}

	t.history = append(t.history, StageRecord{
		From:      t.current,
		To:        target,
		Timestamp: t.now().UTC(),
	})
	t.current = target
	return nil
}

// Fail переводит автомат в failed из любого нетерминального состояния,
// из которого это разрешено. Из received отказ оформляется как rejected.
func (t *Tracker) Fail() {
	if t.CanAdvanceTo(StageFailed) {
		_ = t.Advance(StageFailed)
	}
}

// IsTerminal сообщает, достигнуто ли конечное состояние.
func (t *Tracker) IsTerminal() bool {
	return len(validTransitions[t.current]) == 0
}

// History возвращает копию истории переходов.
func (t *Tracker) History() []StageRecord {
	result := make([]StageRecord, len(t.history))
	copy(result, t.history)
	return result
}

// Trace возвращает пройденные состояния через "→",
// например received→accepted→failed.
func (t *Tracker) Trace() string {
	if len(t.history) == 0 {
		return string(t.current)
	}
	stages := make([]string, 0, len(t.history)+1)
	stages = append(stages, string(t.history[0].From))
	for _, rec := range t.history {
		stages = append(stages, string(rec.To))
	}
	return strings.Join(stages, "→")
}

// TransitionError — ошибка перехода между состояниями.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
