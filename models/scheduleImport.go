package models

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// import columns, in file order
const (
	colCode = iota
	colUdfCode
	colRefNo
	colName
	colTemplateCode
	colUnderCode
	colChartType
	colDefaultAccountType
	colActive
	colEditable
)

var ScheduleImportHeaders = []string{
	"Code", "UDF Code", "Ref No", "Name", "Template Code",
	"Under Code", "Chart Type", "Default Account Type", "Active", "Editable",
}

const (
	scheduleImportLock    = "ScheduleImport"
	scheduleImportLockTTL = 10 * time.Minute
)

type ImportResult struct {
	SuccessCount        int      `json:"success_count"`
	FailureCount        int      `json:"failure_count"`
	Errors              []string `json:"errors"`
	Warnings            []string `json:"warnings"`
	MissingDependencies []string `json:"missing_dependencies"`
	Duplicates          []string `json:"duplicates"`
}

func newImportResult() *ImportResult {
	return &ImportResult{
		Errors:              make([]string, 0),
		Warnings:            make([]string, 0),
		MissingDependencies: make([]string, 0),
		Duplicates:          make([]string, 0),
	}
}

func (r *ImportResult) fail(rowNo int, format string, args ...any) {
	r.FailureCount++
	r.Errors = append(r.Errors, fmt.Sprintf("Row %d: ", rowNo)+fmt.Sprintf(format, args...))
}

func (r *ImportResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// importRow is one parsed data row.
type importRow struct {
	input          NewSchedule
	accountTypeRef string
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseImportFlag(value string, column string) (bool, error) {
	switch value {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("%s must be 0 or 1, got %q", column, value)
}

// parseImportRow validates the scalar columns of a row.
func parseImportRow(row []string) (*importRow, error) {
	codeText := cell(row, colCode)
	if codeText == "" {
		return nil, fmt.Errorf("code is required")
	}
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return nil, fmt.Errorf("code must be an integer, got %q", codeText)
	}
	scheduleCode := cell(row, colUdfCode)
	if scheduleCode == "" {
		return nil, fmt.Errorf("udf code is required")
	}
	name := cell(row, colName)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	active, err := parseImportFlag(cell(row, colActive), "active")
	if err != nil {
		return nil, err
	}
	editable, err := parseImportFlag(cell(row, colEditable), "editable")
	if err != nil {
		return nil, err
	}

	return &importRow{
		input: NewSchedule{
			Code:         code,
			ScheduleCode: scheduleCode,
			UdfCode:      scheduleCode,
			RefNo:        cell(row, colRefNo),
			Name:         name,
			TemplateCode: cell(row, colTemplateCode),
			UnderCode:    cell(row, colUnderCode),
			ChartType:    cell(row, colChartType),
			IsActive:     &active,
			IsEditable:   &editable,
		},
		accountTypeRef: cell(row, colDefaultAccountType),
	}, nil
}

// accountTypeResolver resolves by uuid first, then case-insensitive name.
type accountTypeResolver struct {
	ids    map[string]bool
	byName map[string]string
}

func newAccountTypeResolver(accountTypes []*AccountType) *accountTypeResolver {
	r := &accountTypeResolver{ids: make(map[string]bool), byName: make(map[string]string)}
	for _, at := range accountTypes {
		r.ids[strings.ToLower(at.ID)] = true
		r.byName[strings.ToLower(strings.TrimSpace(at.Name))] = at.ID
	}
	return r
}

func (r *accountTypeResolver) resolve(ref string) (string, bool) {
	if parsed, err := uuid.Parse(ref); err == nil {
		if r.ids[parsed.String()] {
			return parsed.String(), true
		}
	}
	id, ok := r.byName[strings.ToLower(ref)]
	return id, ok
}

// ImportSchedulesFromFile reads an .xlsx or .csv upload and imports its rows.
func ImportSchedulesFromFile(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	rows, err := utils.ReadSheetRows(filename, r)
	if err != nil {
		return nil, err
	}
	return ImportSchedules(ctx, rows)
}

// ImportSchedules persists each valid row and then re-links parents.
// Row problems are reported in the result; store failures abort.
func ImportSchedules(ctx context.Context, rows [][]string) (*ImportResult, error) {
	logger := config.GetLogger()

	if maxRows := config.ImportMaxRows(); maxRows > 0 && len(rows) > maxRows {
		return nil, utils.NewValidationError(utils.ErrCodeInvalidInput, "import has %d rows, the limit is %d", len(rows), maxRows)
	}

	release, err := utils.ObtainLock(ctx, scheduleImportLock, "", scheduleImportLockTTL, "Schedule", "ImportSchedules")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	result := newImportResult()

	var existingCodes []string
	if err := db.WithContext(ctx).Model(&Schedule{}).Pluck("schedule_code", &existingCodes).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existingCodes)+len(rows))
	for _, code := range existingCodes {
		seen[code] = true
	}

	accountTypes := make([]*AccountType, 0)
	if err := db.WithContext(ctx).Find(&accountTypes).Error; err != nil {
		return nil, err
	}
	accountTypeIds := newAccountTypeResolver(accountTypes)

	userName, _ := utils.GetUserNameFromContext(ctx)
	codeToId := make(map[int]string)
	imported := make(map[string]bool)

	// pass 1
	for i, row := range rows {
		rowNo := i + 2
		if isBlankRow(row) {
			continue
		}
		parsed, err := parseImportRow(row)
		if err != nil {
			result.fail(rowNo, "%s", err.Error())
			continue
		}
		input := parsed.input

		if seen[input.ScheduleCode] {
			result.fail(rowNo, "%s: schedule code %s already exists", utils.ErrCodeDuplicateCode, input.ScheduleCode)
			result.Duplicates = appendUnique(result.Duplicates, input.ScheduleCode)
			continue
		}

		var accountTypeId *string
		if parsed.accountTypeRef != "" {
			if id, ok := accountTypeIds.resolve(parsed.accountTypeRef); ok {
				accountTypeId = &id
			} else {
				result.warn("Row %d: account type %q not found, schedule %s imported without it", rowNo, parsed.accountTypeRef, input.ScheduleCode)
				result.MissingDependencies = appendUnique(result.MissingDependencies, parsed.accountTypeRef)
			}
		}

		schedule := Schedule{
			Code:                 input.Code,
			ScheduleCode:         input.ScheduleCode,
			UdfCode:              input.UdfCode,
			RefNo:                input.RefNo,
			Name:                 input.Name,
			TemplateCode:         input.TemplateCode,
			UnderCode:            input.UnderCode,
			ChartType:            input.ChartType,
			DefaultAccountTypeId: accountTypeId,
			IsActive:             input.IsActive,
			IsEditable:           input.IsEditable,
			CreatedBy:            userName,
		}
		err = runInTransaction(ctx, func(tx *gorm.DB) error {
			if err := tx.Create(&schedule).Error; err != nil {
				return mapScheduleWriteError(err, schedule.ScheduleCode)
			}
			return saveHistory(tx, "", ActionImport, schedule.ID, "schedules", nil, &schedule, "imported schedule "+schedule.ScheduleCode)
		})
		if err != nil {
			if utils.IsErrorCode(err, utils.ErrCodeDuplicateCode) {
				seen[input.ScheduleCode] = true
				result.fail(rowNo, "%s: schedule code %s already exists", utils.ErrCodeDuplicateCode, input.ScheduleCode)
				result.Duplicates = appendUnique(result.Duplicates, input.ScheduleCode)
				continue
			}
			config.LogError(logger, "Schedule", "ImportSchedules", fmt.Sprintf("row %d", rowNo), input, err)
			return nil, err
		}

		seen[schedule.ScheduleCode] = true
		imported[schedule.ID] = true
		if _, ok := codeToId[schedule.Code]; !ok {
			codeToId[schedule.Code] = schedule.ID
		}
		result.SuccessCount++
	}

	// pass 2
	all := make([]*Schedule, 0)
	if err := db.WithContext(ctx).Order("created_at").Order("id").Find(&all).Error; err != nil {
		return nil, err
	}
	resolution := ResolveParentLinks(all, codeToId)
	for _, s := range resolution.Unresolved {
		if imported[s.ID] {
			result.warn("schedule %s: parent %q not found, imported as a root", s.ScheduleCode, s.UnderCode)
			result.MissingDependencies = appendUnique(result.MissingDependencies, parentCodeOf(s.UnderCode))
			logger.WithFields(logrus.Fields{
				"field":         "Schedule",
				"schedule_code": s.ScheduleCode,
				"under_code":    s.UnderCode,
			}).Warn("unresolved parent")
		}
	}
	if len(resolution.Changed) > 0 {
		err := runInTransaction(ctx, func(tx *gorm.DB) error {
			for _, s := range resolution.Changed {
				if err := tx.Model(&Schedule{}).Where("id = ?", s.ID).
					UpdateColumn("parent_schedule_id", s.ParentScheduleId).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			config.LogError(logger, "Schedule", "ImportSchedules", "linking parents", len(resolution.Changed), err)
			return nil, err
		}
	}

	for _, s := range resolution.Changed {
		if err := s.RemoveInstanceRedis(); err != nil {
			config.LogError(logger, "Schedule", "ImportSchedules", "clearing cache", s.ID, err)
		}
	}
	if err := utils.ClearRedisAdmin[Schedule](); err != nil {
		config.LogError(logger, "Schedule", "ImportSchedules", "clearing cache", nil, err)
	}

	logger.WithFields(logrus.Fields{
		"field":    "Schedule",
		"success":  result.SuccessCount,
		"failure":  result.FailureCount,
		"warnings": len(result.Warnings),
	}).Info("schedule import finished")
	return result, nil
}

type ParentResolution struct {
	// schedules whose ParentScheduleId now differs from the stored value
	Changed []*Schedule
	// schedules with an under-code that matched nothing
	Unresolved []*Schedule
}

// ResolveParentLinks sets ParentScheduleId from each under-code.
// The parent code is the under-code minus its last dotted segment. It is
// matched as a literal schedule code, then as an integer through codeToId,
// then against the integer Code of the given schedules.
func ResolveParentLinks(schedules []*Schedule, codeToId map[int]string) ParentResolution {
	var resolution ParentResolution

	byScheduleCode := make(map[string]*Schedule, len(schedules))
	byOrdinal := make(map[int]*Schedule, len(schedules))
	for _, s := range schedules {
		if _, ok := byScheduleCode[s.ScheduleCode]; !ok {
			byScheduleCode[s.ScheduleCode] = s
		}
		if _, ok := byOrdinal[s.Code]; !ok {
			byOrdinal[s.Code] = s
		}
	}

	for _, s := range schedules {
		if isRootUnderCode(s.UnderCode) {
			continue
		}
		parentCode := parentCodeOf(s.UnderCode)

		parentId := ""
		if p, ok := byScheduleCode[parentCode]; ok {
			parentId = p.ID
		} else if ordinal, err := strconv.Atoi(parentCode); err == nil {
			if id, ok := codeToId[ordinal]; ok {
				parentId = id
			} else if p, ok := byOrdinal[ordinal]; ok {
				parentId = p.ID
			}
		}

		if parentId == "" || parentId == s.ID {
			resolution.Unresolved = append(resolution.Unresolved, s)
			continue
		}
		if s.parentId() != parentId {
			id := parentId
			s.ParentScheduleId = &id
			resolution.Changed = append(resolution.Changed, s)
		}
	}
	return resolution
}

// WriteScheduleImportTemplate writes an empty workbook with the import headers.
func WriteScheduleImportTemplate(w io.Writer) error {
	return utils.WriteSheetTemplate(w, "Schedules", ScheduleImportHeaders, [][]string{
		{"1", "1", "A01", "Assets", "", "0", "BS", "", "1", "0"},
		{"2", "1.1", "A02", "Current Assets", "", "1", "BS", "", "1", "1"},
	})
}
