package models_test

import (
	"context"
	"testing"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/models"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB installs a fresh in-memory catalog and returns an admin-tool context.
func setupTestDB(t *testing.T) context.Context {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database shared
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Use(config.NewTenantGuardPlugin()))

	prevDB := config.GetDB()
	config.UseDB(db)
	config.UseRedis(nil)
	t.Cleanup(func() {
		config.UseDB(prevDB)
		_ = sqlDB.Close()
	})

	require.NoError(t, models.MigrateTable())

	ctx := utils.SetUserIdInContext(context.Background(), "user-1")
	return utils.SetUserNameInContext(ctx, "tester")
}

// tenantCtx is ctx as seen by a request of the given group.
func tenantCtx(ctx context.Context, groupId string) context.Context {
	return utils.SetGroupIdInContext(ctx, groupId)
}

type scheduleSpec struct {
	code      int
	sc        string
	name      string
	underCode string
	refNo     string
	editable  bool
	inactive  bool
}

func mustCreateSchedule(t *testing.T, ctx context.Context, s scheduleSpec) *models.Schedule {
	t.Helper()
	active := !s.inactive
	editable := s.editable
	out, err := models.CreateSchedule(ctx, &models.NewSchedule{
		Code:         s.code,
		ScheduleCode: s.sc,
		Name:         s.name,
		UnderCode:    s.underCode,
		RefNo:        s.refNo,
		IsActive:     &active,
		IsEditable:   &editable,
	})
	require.NoError(t, err)
	return out
}

func mustRename(t *testing.T, ctx context.Context, groupId, scheduleId, name string) *models.RenameSchedule {
	t.Helper()
	out, err := models.UpsertRenameSchedule(ctx, &models.NewRenameSchedule{
		GroupId:    groupId,
		ScheduleId: scheduleId,
		Name:       name,
	})
	require.NoError(t, err)
	return out
}

// flatten lists "code:displayName" depth-first for compact assertions.
func flatten(nodes []*models.ScheduleTreeNode) []string {
	var out []string
	var walk func([]*models.ScheduleTreeNode)
	walk = func(ns []*models.ScheduleTreeNode) {
		for _, n := range ns {
			out = append(out, n.Code+":"+n.DisplayName)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}
