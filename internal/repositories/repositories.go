package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// execOne runs a statement that must touch exactly one row. notFound is returned when none matched.
func execOne(db *sql.DB, notFound error, query string, args ...any) error {
	result, err := db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
