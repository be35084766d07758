package models_test

import (
	"context"
	"testing"

	"bitbucket.org/auditdesk/audit_backend/models"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchedule_DuplicateCode(t *testing.T) {
	ctx := setupTestDB(t)
	mustCreateSchedule(t, ctx, scheduleSpec{code: 1, sc: "A", name: "Assets"})

	_, err := models.CreateSchedule(ctx, &models.NewSchedule{Code: 2, ScheduleCode: "A", Name: "Other"})
	require.Error(t, err)
	assert.Equal(t, utils.ErrorKindConflict, utils.ErrorKindOf(err))
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeDuplicateCode))
}

func TestCreateSchedule_ValidatesInput(t *testing.T) {
	ctx := setupTestDB(t)

	_, err := models.CreateSchedule(ctx, &models.NewSchedule{Code: 1, ScheduleCode: "A"})
	require.Error(t, err)
	assert.Equal(t, utils.ErrorKindValidation, utils.ErrorKindOf(err))

	bad := "not-a-uuid"
	_, err = models.CreateSchedule(ctx, &models.NewSchedule{Code: 1, ScheduleCode: "A", Name: "Assets", DefaultAccountTypeId: &bad})
	require.Error(t, err)
	assert.Equal(t, utils.ErrorKindValidation, utils.ErrorKindOf(err))
}

func TestCreateSchedule_ParentResolution(t *testing.T) {
	ctx := setupTestDB(t)
	parent := mustCreateSchedule(t, ctx, scheduleSpec{code: 1, sc: "A", name: "Assets"})

	child := mustCreateSchedule(t, ctx, scheduleSpec{code: 2, sc: "B", name: "Cash", underCode: "A"})
	require.NotNil(t, child.ParentScheduleId)
	assert.Equal(t, parent.ID, *child.ParentScheduleId)

	byOrdinal := mustCreateSchedule(t, ctx, scheduleSpec{code: 3, sc: "C", name: "Bank", underCode: "1"})
	require.NotNil(t, byOrdinal.ParentScheduleId)
	assert.Equal(t, parent.ID, *byOrdinal.ParentScheduleId)

	// parent not there yet: kept verbatim for later linking
	orphan := mustCreateSchedule(t, ctx, scheduleSpec{code: 4, sc: "D", name: "Later", underCode: "Z"})
	assert.Nil(t, orphan.ParentScheduleId)
	assert.Equal(t, "Z", orphan.UnderCode)
}

func TestUpdateSchedule(t *testing.T) {
	ctx := setupTestDB(t)
	a := mustCreateSchedule(t, ctx, scheduleSpec{code: 1, sc: "A", name: "Assets"})
	b := mustCreateSchedule(t, ctx, scheduleSpec{code: 2, sc: "B", name: "Cash", underCode: "A"})

	updated, err := models.UpdateSchedule(ctx, b.ID, &models.NewSchedule{Code: 2, ScheduleCode: "B", Name: "Cash at bank", UnderCode: "A"})
	require.NoError(t, err)
	assert.Equal(t, "Cash at bank", updated.Name)

	_, err = models.UpdateSchedule(ctx, b.ID, &models.NewSchedule{Code: 2, ScheduleCode: "B", Name: "Cash", UnderCode: "B"})
	require.Error(t, err)
	assert.Equal(t, utils.ErrorKindValidation, utils.ErrorKindOf(err))

	// A under B while B is under A
	_, err = models.UpdateSchedule(ctx, a.ID, &models.NewSchedule{Code: 1, ScheduleCode: "A", Name: "Assets", UnderCode: "B"})
	require.Error(t, err)
	assert.Equal(t, utils.ErrorKindValidation, utils.ErrorKindOf(err))

	_, err = models.UpdateSchedule(ctx, b.ID, &models.NewSchedule{Code: 2, ScheduleCode: "A", Name: "Cash"})
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeDuplicateCode))

	_, err = models.UpdateSchedule(ctx, "missing", &models.NewSchedule{Code: 9, ScheduleCode: "Q", Name: "Q"})
	assert.Equal(t, utils.ErrorKindNotFound, utils.ErrorKindOf(err))
}

func TestDeleteSchedule(t *testing.T) {
	ctx := setupTestDB(t)
	a := mustCreateSchedule(t, ctx, scheduleSpec{code: 1, sc: "A", name: "Assets"})
	b := mustCreateSchedule(t, ctx, scheduleSpec{code: 2, sc: "B", name: "Cash", underCode: "A", editable: true})

	_, err := models.DeleteSchedule(ctx, a.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInUse), "child schedules block delete")

	mustRename(t, ctx, "g1", b.ID, "Petty cash")
	_, err = models.DeleteSchedule(ctx, b.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInUse), "renames block delete")

	_, err = models.DeleteRenameSchedule(ctx, "g1", b.ID)
	require.NoError(t, err)
	_, err = models.DeleteSchedule(ctx, b.ID)
	require.NoError(t, err)
	_, err = models.DeleteSchedule(ctx, a.ID)
	require.NoError(t, err)

	_, err = models.GetSchedule(ctx, a.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeScheduleNotFound))
	_, err = models.DeleteSchedule(ctx, a.ID)
	assert.Equal(t, utils.ErrorKindNotFound, utils.ErrorKindOf(err))
}

func TestDeleteSchedule_CountsRenamesOfOtherGroups(t *testing.T) {
	ctx := setupTestDB(t)
	a := mustCreateSchedule(t, ctx, scheduleSpec{code: 1, sc: "A", name: "Assets", editable: true})
	mustRename(t, ctx, "g1", a.ID, "Our assets")

	_, err := models.DeleteSchedule(tenantCtx(ctx, "g2"), a.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInUse))

	renames, err := models.GetRenameSchedules(tenantCtx(ctx, "g2"), "g2")
	require.NoError(t, err)
	assert.Empty(t, renames, "reads stay scoped to the caller's group")
}

func TestDeleteSchedule_BlockedByTaxRate(t *testing.T) {
	ctx := setupTestDB(t)
	a := mustCreateSchedule(t, ctx, scheduleSpec{code: 1, sc: "A", name: "Tax payable"})
	_, err := models.CreateTaxRate(ctx, &models.NewTaxRate{Name: "VAT", ScheduleId: &a.ID})
	require.NoError(t, err)

	_, err = models.DeleteSchedule(ctx, a.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeInUse))
}

func TestGetSchedules_ActiveOrderedByName(t *testing.T) {
	ctx := setupTestDB(t)
	mustCreateSchedule(t, ctx, scheduleSpec{code: 1, sc: "A", name: "Zeta"})
	mustCreateSchedule(t, ctx, scheduleSpec{code: 2, sc: "B", name: "Alpha"})
	mustCreateSchedule(t, ctx, scheduleSpec{code: 3, sc: "C", name: "Beta", inactive: true})
	mustCreateSchedule(t, ctx, scheduleSpec{code: 4, sc: "D", name: "Gamma"})

	all, err := models.GetSchedules(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, s := range all {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Alpha", "Gamma", "Zeta"}, names)

	term := "ALP"
	found, err := models.GetSchedules(ctx, &term)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "B", found[0].ScheduleCode)
}

func TestPaginateSchedule(t *testing.T) {
	ctx := setupTestDB(t)
	for i, name := range []string{"Cash", "Bank", "Assets"} {
		mustCreateSchedule(t, ctx, scheduleSpec{code: i + 1, sc: name[:1], name: name})
	}

	limit := 2
	first, err := models.PaginateSchedule(ctx, &limit, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, first.Edges, 2)
	assert.Equal(t, "Assets", first.Edges[0].Node.Name)
	assert.Equal(t, "Bank", first.Edges[1].Node.Name)
	assert.True(t, *first.PageInfo.HasNextPage)

	second, err := models.PaginateSchedule(ctx, &limit, &first.PageInfo.EndCursor, nil, nil)
	require.NoError(t, err)
	require.Len(t, second.Edges, 1)
	assert.Equal(t, "Cash", second.Edges[0].Node.Name)
	assert.False(t, *second.PageInfo.HasNextPage)
}

func TestToggleActiveSchedule_WritesHistory(t *testing.T) {
	ctx := setupTestDB(t)
	a := mustCreateSchedule(t, ctx, scheduleSpec{code: 1, sc: "A", name: "Assets"})

	toggled, err := models.ToggleActiveSchedule(ctx, a.ID, false)
	require.NoError(t, err)
	assert.False(t, *toggled.IsActive)

	refType := "schedules"
	histories, err := models.GetHistories(ctx, "", &refType, &a.ID)
	require.NoError(t, err)
	require.Len(t, histories, 2)
	assert.Equal(t, models.ActionInactive, histories[0].ActionType)
	assert.Equal(t, models.ActionCreate, histories[1].ActionType)
	assert.Equal(t, "user-1", histories[0].UserId)

	_, err = models.ToggleActiveSchedule(ctx, "missing", true)
	assert.True(t, utils.IsErrorCode(err, utils.ErrCodeScheduleNotFound))
}

func TestAuditFailure_IsBestEffortByDefault(t *testing.T) {
	ctx := setupTestDB(t)
	// no acting user: the audit row cannot be written
	anonymous := context.Background()

	s, err := models.CreateSchedule(anonymous, &models.NewSchedule{Code: 1, ScheduleCode: "A", Name: "Assets"})
	require.NoError(t, err)

	got, err := models.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Assets", got.Name)

	refType := "schedules"
	histories, err := models.GetHistories(ctx, "", &refType, &s.ID)
	require.NoError(t, err)
	assert.Empty(t, histories)
}

func TestAuditFailure_BlocksWhenConfigured(t *testing.T) {
	ctx := setupTestDB(t)
	t.Setenv("AUDIT_LOG_BLOCKING", "true")

	_, err := models.CreateSchedule(context.Background(), &models.NewSchedule{Code: 1, ScheduleCode: "A", Name: "Assets"})
	require.Error(t, err)

	all, err := models.GetSchedules(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}
