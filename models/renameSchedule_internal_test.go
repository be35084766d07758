package models

import (
	"errors"
	"testing"

	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestInsertRenameSchedule_UniquePairConflict(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&RenameSchedule{}))

	// another writer got there between the read check and the insert
	require.NoError(t, db.Create(&RenameSchedule{ScheduleId: "s1", GroupId: "g1", RenameScheduleName: "First"}).Error)

	err = insertRenameSchedule(db, &RenameSchedule{ScheduleId: "s1", GroupId: "g1", RenameScheduleName: "Second"}, "A.1")
	require.Error(t, err)
	assert.Equal(t, utils.ErrorKindConflict, utils.ErrorKindOf(err))
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeDuplicateName))
	assert.Contains(t, err.Error(), "A.1")
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, utils.IsDuplicateKeyError(appErr.Err))

	// same schedule for another group is a separate pair
	require.NoError(t, insertRenameSchedule(db, &RenameSchedule{ScheduleId: "s1", GroupId: "g2", RenameScheduleName: "Other"}, "A.1"))

	var count int64
	require.NoError(t, db.Model(&RenameSchedule{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
