package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/paulexconde/surveydesk/pkg/fault"
)

// translate maps driver errors onto fault sentinels so callers never import a driver.
func translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", fault.ErrUniqueViolation, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: %s", fault.ErrForeignKeyViolation, pqErr.Constraint)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", fault.ErrUniqueViolation, liteErr)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", fault.ErrForeignKeyViolation, liteErr)
		}
	}

	return err
}
