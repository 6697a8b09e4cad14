// Package repository реализует хранилище на PostgreSQL для платформы курсов:
// учётные записи и профили, роли, лиды, пробные периоды и комментарии к урокам.
// Каждая строка переводится в явный тип из models сразу после чтения.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrNotFound строка не найдена
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail нарушено ограничение уникальности почты
	ErrDuplicateEmail = errors.New("email already exists")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'trials'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("readiness query failed: %w", err)
	}
	if !exists {
		return errors.New("required table trials missing")
	}
	return nil
}

// Ready проверяет доступность базы для проверки готовности сервиса.
func (s *Storage) Ready(ctx context.Context) error {
	return CheckDatabaseReady(ctx, s)
}

// mapError переводит ошибки драйвера в ошибки пакета.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			if pgErr.ConstraintName == "registrations_email_key" || pgErr.ConstraintName == "users_email_key" {
				return ErrDuplicateEmail
			}
		case pgerrcode.InvalidTextRepresentation:
			// некорректный uuid в фильтре означает отсутствие строки
			return ErrNotFound
		}
	}
	return err
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, mapError(err))
}
