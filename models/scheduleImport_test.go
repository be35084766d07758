package models_test

import (
	"bytes"
	"strings"
	"testing"

	"bitbucket.org/auditdesk/audit_backend/models"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// row builds an import row: code, udfCode, refNo, name, templateCode,
// underCode, chartType, defaultAccountType, active, editable
func row(code, udf, name, under, accountType, active, editable string) []string {
	return []string{code, udf, "", name, "T1", under, "BS", accountType, active, editable}
}

func scheduleByCode(t *testing.T, all []*models.Schedule, code string) *models.Schedule {
	t.Helper()
	for _, s := range all {
		if s.ScheduleCode == code {
			return s
		}
	}
	t.Fatalf("schedule %s not found", code)
	return nil
}

func TestImportSchedules_DuplicatesReportedOnce(t *testing.T) {
	ctx := setupTestDB(t)

	result, err := models.ImportSchedules(ctx, [][]string{
		row("1", "X", "First", "", "", "1", "0"),
		row("2", "X", "Second", "", "", "1", "0"),
		row("3", "X", "Third", "", "", "1", "0"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
	assert.Equal(t, []string{"X"}, result.Duplicates)
	require.Len(t, result.Errors, 2)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Row 3: "), result.Errors[0])
	assert.Contains(t, result.Errors[0], utils.ErrCodeDuplicateCode)

	// an existing code is a duplicate too
	again, err := models.ImportSchedules(ctx, [][]string{row("1", "X", "First", "", "", "1", "0")})
	require.NoError(t, err)
	assert.Equal(t, 0, again.SuccessCount)
	assert.Equal(t, []string{"X"}, again.Duplicates)
}

func TestImportSchedules_MalformedRowsDoNotAbort(t *testing.T) {
	ctx := setupTestDB(t)

	result, err := models.ImportSchedules(ctx, [][]string{
		row("abc", "A", "Bad code", "", "", "1", "0"),
		row("2", "", "No udf", "", "", "1", "0"),
		row("3", "C", "", "", "", "1", "0"),
		row("4", "D", "Bad flag", "", "", "yes", "0"),
		row("5", "E", "Bad editable", "", "", "1", "2"),
		{"", "", "", ""},
		row("6", "F", "Good", "", "", "1", "1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 5, result.FailureCount)
	require.Len(t, result.Errors, 5)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Row 2: "))
	assert.Contains(t, result.Errors[3], "active must be 0 or 1")
	assert.True(t, strings.HasPrefix(result.Errors[4], "Row 6: "))
}

func TestImportSchedules_HierarchicalUnderCode(t *testing.T) {
	ctx := setupTestDB(t)

	result, err := models.ImportSchedules(ctx, [][]string{
		// child first: linked in the second pass
		row("3", "1.2.3", "Leaf", "1.2.3", "", "1", "0"),
		row("1", "1", "Root", "0", "", "1", "0"),
		row("2", "1.2", "Middle", "1.2", "", "1", "0"),
		row("4", "9.9.1", "Lost", "9.9.1", "", "1", "0"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "9.9.1")
	assert.Equal(t, []string{"9.9"}, result.MissingDependencies)

	all, err := models.GetSchedules(ctx, nil)
	require.NoError(t, err)
	root := scheduleByCode(t, all, "1")
	middle := scheduleByCode(t, all, "1.2")
	leaf := scheduleByCode(t, all, "1.2.3")
	lost := scheduleByCode(t, all, "9.9.1")

	assert.Nil(t, root.ParentScheduleId)
	require.NotNil(t, middle.ParentScheduleId)
	assert.Equal(t, root.ID, *middle.ParentScheduleId)
	require.NotNil(t, leaf.ParentScheduleId)
	assert.Equal(t, middle.ID, *leaf.ParentScheduleId)
	assert.Nil(t, lost.ParentScheduleId)

	tree, err := models.GetActiveScheduleTree(ctx, "g1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1:Root", "1.2:Middle", "1.2.3:Leaf", "9.9.1:Lost"}, flatten(tree))
}

func TestImportSchedules_IntegerUnderCode(t *testing.T) {
	ctx := setupTestDB(t)

	result, err := models.ImportSchedules(ctx, [][]string{
		row("10", "ASSETS", "Assets", "", "", "1", "0"),
		row("11", "CASH", "Cash", "10", "", "1", "0"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Empty(t, result.Warnings)

	all, err := models.GetSchedules(ctx, nil)
	require.NoError(t, err)
	cash := scheduleByCode(t, all, "CASH")
	require.NotNil(t, cash.ParentScheduleId)
	assert.Equal(t, scheduleByCode(t, all, "ASSETS").ID, *cash.ParentScheduleId)
}

func TestImportSchedules_AccountTypeResolution(t *testing.T) {
	ctx := setupTestDB(t)
	bank, err := models.CreateAccountType(ctx, &models.NewAccountType{Name: "Bank"})
	require.NoError(t, err)
	equity, err := models.CreateAccountType(ctx, &models.NewAccountType{Name: "Equity"})
	require.NoError(t, err)

	result, err := models.ImportSchedules(ctx, [][]string{
		row("1", "A", "By name", "", "bANK", "1", "0"),
		row("2", "B", "By id", "", equity.ID, "1", "0"),
		row("3", "C", "Unknown", "", "Crypto", "1", "0"),
		row("4", "D", "Unknown again", "", "Crypto", "1", "0"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Len(t, result.Warnings, 2)
	assert.Equal(t, []string{"Crypto"}, result.MissingDependencies)

	all, err := models.GetSchedules(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, bank.ID, *scheduleByCode(t, all, "A").DefaultAccountTypeId)
	assert.Equal(t, equity.ID, *scheduleByCode(t, all, "B").DefaultAccountTypeId)
	assert.Nil(t, scheduleByCode(t, all, "C").DefaultAccountTypeId)
}

func TestImportSchedules_RowLimit(t *testing.T) {
	ctx := setupTestDB(t)
	t.Setenv("IMPORT_MAX_ROWS", "1")

	_, err := models.ImportSchedules(ctx, [][]string{
		row("1", "A", "A", "", "", "1", "0"),
		row("2", "B", "B", "", "", "1", "0"),
	})
	require.Error(t, err)
	assert.Equal(t, utils.ErrorKindValidation, utils.ErrorKindOf(err))
}

func TestImportSchedulesFromFile(t *testing.T) {
	ctx := setupTestDB(t)

	csv := "code,udf,ref,name,template,under,chart,type,active,editable\n" +
		"1,A,01,Assets,,0,BS,,1,0\n" +
		"2,B,02,Cash,,A,BS,,1,1\n"
	result, err := models.ImportSchedulesFromFile(ctx, "schedules.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)

	var buf bytes.Buffer
	require.NoError(t, utils.WriteSheetTemplate(&buf, "Schedules", models.ScheduleImportHeaders, [][]string{
		{"3", "C", "03", "Bank", "", "A", "BS", "", "1", "0"},
	}))
	result, err = models.ImportSchedulesFromFile(ctx, "schedules.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)

	tree, err := models.GetActiveScheduleTree(ctx, "g1", nil)
	require.NoError(t, err)
	// B is editable and unrenamed for g1
	assert.Equal(t, []string{"A:Assets", "C:Bank"}, flatten(tree))

	_, err = models.ImportSchedulesFromFile(ctx, "schedules.txt", strings.NewReader(""))
	assert.Equal(t, utils.ErrorKindValidation, utils.ErrorKindOf(err))
}
