package repositories

import (
	stderrors "errors"

	domain "coinforge/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// maxTxRetries bounds transparent retries of serialization conflicts.
const maxTxRetries = 3

// isRetryableSQLState reports whether err is a Postgres serialization
// failure or deadlock; both are safe to retry because the whole closure
// re-executes from scratch.
func isRetryableSQLState(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// ExecuteInTransaction runs fn inside one storage transaction. Conflicting
// concurrent transactions (serialization failures, deadlocks) are retried
// up to maxTxRetries times; exhausted retries surface as ErrStorageConflict
// so callers return a generic failure rather than SQL detail.
func ExecuteInTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = db.Transaction(fn)
		if err == nil || !isRetryableSQLState(err) {
			return err
		}
	}
	return domain.ErrStorageConflict
}
