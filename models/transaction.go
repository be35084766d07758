package models

import (
	"context"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const (
	txMaxRetries  = 3
	txBaseBackoff = 50 * time.Millisecond
)

// runInTransaction runs fn in a single transaction and replays the whole unit on
// deadlocks, lock wait timeouts and dropped connections.
// Exhausted retries surface as a Transient AppError.
func runInTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()
	backoff := retry.WithMaxRetries(txMaxRetries, retry.NewExponential(txBaseBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := db.WithContext(ctx).Transaction(fn)
		if utils.IsTransientDBError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if utils.IsTransientDBError(err) {
		config.LogError(config.GetLogger(), "Transaction", "runInTransaction", "retries exhausted", nil, err)
		return utils.NewTransientError(err)
	}
	return err
}
