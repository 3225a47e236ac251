package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error is a failed query. Its text is the database's own message so it
// can be shown to operators as-is.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Message extracts the human-readable part of a database error.
func Message(err error) string {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pgErr):
		return pgErr.Message
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "no rows returned"
	default:
		return err.Error()
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Message: Message(err), Err: err}
}
