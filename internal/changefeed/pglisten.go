package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
)

// NotifyChannel имя канала pg_notify, в который пишут триггеры из migrations.
const NotifyChannel = "row_changes"

// Publisher принимает разобранные события.
type Publisher interface {
	Publish(ev Event)
}

// PgListener слушает pg_notify на отдельном соединении и передаёт события в Publisher.
// При обрыве соединения переподключается с задержкой retryDelay.
type PgListener struct {
	dsn        string
	channel    string
	pub        Publisher
	retryDelay time.Duration
	log        *slog.Logger
}

// NewPgListener создаёт слушателя канала NotifyChannel.
func NewPgListener(dsn string, pub Publisher, retryDelay time.Duration, log *slog.Logger) *PgListener {
	if retryDelay <= 0 {
		retryDelay = 3 * time.Second
	}
	return &PgListener{
		dsn:        dsn,
		channel:    NotifyChannel,
		pub:        pub,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Run блокируется до отмены ctx. Ошибки соединения логируются и не прерывают работу.
func (l *PgListener) Run(ctx context.Context) error {
	const op = "changefeed.PgListener.Run"
	log := l.log.With(sl.Op(op))

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			log.Info("change listener stopped")
			return nil
		}
		log.Error("change listener disconnected, reconnecting", sl.Err(err),
			slog.Duration("retry_delay", l.retryDelay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *PgListener) listen(ctx context.Context) error {
	const op = "changefeed.listen"

	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	l.log.Info("listening for row changes", slog.String("channel", l.channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		ev, err := ParseNotification(n.Payload)
		if err != nil {
			l.log.Warn("malformed change notification", sl.Err(err))
			continue
		}
		l.pub.Publish(ev)
	}
}

// ParseNotification разбирает полезную нагрузку pg_notify вида
// {"op":"INSERT","table":"trials","row":{...}}.
func ParseNotification(payload string) (Event, error) {
	const op = "changefeed.ParseNotification"

	var raw struct {
		Op    string          `json:"op"`
		Table string          `json:"table"`
		Row   json.RawMessage `json:"row"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Event{}, fmt.Errorf("%s: %w", op, err)
	}
	if raw.Table == "" {
		return Event{}, fmt.Errorf("%s: %w", op, errors.New("missing table"))
	}
	kind, err := ParseOp(raw.Op)
	if err != nil {
		return Event{}, fmt.Errorf("%s: %w", op, err)
	}
	return Event{Op: kind, Table: raw.Table, Row: raw.Row}, nil
}
