// Package changefeed реализует канал уведомлений об изменении строк.
//
// События приходят от триггеров PostgreSQL, которые вызывают pg_notify; PgListener
// слушает канал через pgx и передаёт события в Hub, а Hub раздаёт их подписчикам
// с фильтром по таблице и колонке. Порядок и единственность доставки не гарантируются:
// потребители всегда делают полную замену данных, поэтому повтор безопасен.
package changefeed

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op тип операции над строкой.
type Op string

const (
	// OpInsert вставка строки
	OpInsert Op = "insert"
	// OpUpdate изменение строки
	OpUpdate Op = "update"
	// OpDelete удаление строки
	OpDelete Op = "delete"
)

// ParseOp нормализует имя операции из TG_OP ("INSERT") и подобных форм.
func ParseOp(s string) (Op, error) {
	switch op := Op(strings.ToLower(strings.TrimSpace(s))); op {
	case OpInsert, OpUpdate, OpDelete:
		return op, nil
	default:
		return "", fmt.Errorf("changefeed: unknown operation %q", s)
	}
}

// Event событие изменения одной строки таблицы.
type Event struct {
	Op    Op              `json:"op"`
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

// DecodeRow раскладывает строку события в типизированную структуру.
func (e Event) DecodeRow(dst any) error {
	const op = "changefeed.DecodeRow"
	if len(e.Row) == 0 {
		return fmt.Errorf("%s: empty row", op)
	}
	if err := json.Unmarshal(e.Row, dst); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Filter фильтр по равенству колонки строки значению. Пустой фильтр пропускает всё.
type Filter struct {
	Column string
	Value  string
}

// Eq возвращает фильтр column = value.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// IsZero сообщает, что фильтр не задан.
func (f Filter) IsZero() bool {
	return f.Column == ""
}

// Match проверяет строку события. Строка, которую нельзя разобрать, не проходит
// непустой фильтр.
func (f Filter) Match(row json.RawMessage) bool {
	if f.IsZero() {
		return true
	}
	var fields map[string]any
	if err := json.Unmarshal(row, &fields); err != nil {
		return false
	}
	v, ok := fields[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

func (f Filter) String() string {
	if f.IsZero() {
		return "*"
	}
	return f.Column + "=eq." + f.Value
}
