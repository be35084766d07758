package models

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/DATA-DOG/go-sqlmock"
	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	previous := config.GetDB()
	config.UseDB(db)
	t.Cleanup(func() {
		config.UseDB(previous)
		sqlDB.Close()
	})
	return mock
}

func touch(tx *gorm.DB) error {
	return tx.Exec("UPDATE schedules SET updated_at = NOW()").Error
}

func TestRunInTransaction_RetriesDeadlock(t *testing.T) {
	mock := setupMockDB(t)
	deadlock := &mysqlerr.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE schedules").WillReturnError(deadlock)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE schedules").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, runInTransaction(context.Background(), touch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_ExhaustedRetriesAreTransient(t *testing.T) {
	mock := setupMockDB(t)
	timeout := &mysqlerr.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}

	for i := 0; i <= txMaxRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE schedules").WillReturnError(timeout)
		mock.ExpectRollback()
	}

	err := runInTransaction(context.Background(), touch)
	require.Error(t, err)
	assert.Equal(t, utils.ErrorKindTransient, utils.ErrorKindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_DoesNotRetryDomainErrors(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	want := utils.NewConflictError(utils.ErrCodeInUse, "in use")
	err := runInTransaction(context.Background(), func(tx *gorm.DB) error { return want })
	assert.True(t, errors.Is(err, want))
	assert.NoError(t, mock.ExpectationsWereMet())
}
