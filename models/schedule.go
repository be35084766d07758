package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Schedule is a canonical accounting schedule line shared by every group.
type Schedule struct {
	ID                   string    `gorm:"type:char(36);primary_key" json:"id"`
	Code                 int       `gorm:"index;not null" json:"code"`
	ScheduleCode         string    `gorm:"size:50;uniqueIndex;not null" json:"schedule_code"`
	UdfCode              string    `gorm:"size:50" json:"udf_code"`
	RefNo                string    `gorm:"size:50" json:"ref_no"`
	Name                 string    `gorm:"size:255;not null" json:"name"`
	TemplateCode         string    `gorm:"size:50" json:"template_code"`
	UnderCode            string    `gorm:"size:50" json:"under_code"`
	ChartType            string    `gorm:"size:50" json:"chart_type"`
	DefaultAccountTypeId *string   `gorm:"type:char(36);index" json:"default_account_type_id"`
	ParentScheduleId     *string   `gorm:"type:char(36);index" json:"parent_schedule_id"`
	IsActive             *bool     `gorm:"not null;default:true" json:"is_active"`
	IsEditable           *bool     `gorm:"not null;default:false" json:"is_editable"`
	CreatedBy            string    `gorm:"size:100" json:"created_by"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSchedule struct {
	Code                 int     `json:"code" validate:"gte=0"`
	ScheduleCode         string  `json:"schedule_code" validate:"required,max=50"`
	UdfCode              string  `json:"udf_code" validate:"max=50"`
	RefNo                string  `json:"ref_no" validate:"max=50"`
	Name                 string  `json:"name" validate:"required,max=255"`
	TemplateCode         string  `json:"template_code" validate:"max=50"`
	UnderCode            string  `json:"under_code" validate:"max=50"`
	ChartType            string  `json:"chart_type" validate:"max=50"`
	DefaultAccountTypeId *string `json:"default_account_type_id" validate:"omitempty,uuid"`
	IsActive             *bool   `json:"is_active"`
	IsEditable           *bool   `json:"is_editable"`
}

type SchedulesEdge Edge[Schedule]
type SchedulesConnection struct {
	PageInfo *PageInfo        `json:"pageInfo"`
	Edges    []*SchedulesEdge `json:"edges"`
}

func (s Schedule) GetCursor() string {
	return s.Name
}

func (s Schedule) GetId() any {
	return s.ID
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Schedule) active() bool {
	return utils.DereferencePtr(s.IsActive)
}

func (s *Schedule) editable() bool {
	return utils.DereferencePtr(s.IsEditable)
}

func (s *Schedule) parentId() string {
	return utils.DereferencePtr(s.ParentScheduleId)
}

// isRootUnderCode reports whether an under-code names no parent.
func isRootUnderCode(underCode string) bool {
	underCode = strings.TrimSpace(underCode)
	return underCode == "" || underCode == "0"
}

// parentCodeOf derives the parent reference from an under-code:
// dotted codes drop their last segment ("1.2.3" -> "1.2"), others are used as is.
func parentCodeOf(underCode string) string {
	underCode = strings.TrimSpace(underCode)
	if idx := strings.LastIndex(underCode, "."); idx >= 0 {
		return underCode[:idx]
	}
	return underCode
}

func (input *NewSchedule) normalize() {
	input.ScheduleCode = strings.TrimSpace(input.ScheduleCode)
	input.Name = strings.TrimSpace(input.Name)
	input.UnderCode = strings.TrimSpace(input.UnderCode)
	if input.UdfCode == "" {
		input.UdfCode = input.ScheduleCode
	}
	if input.DefaultAccountTypeId != nil && strings.TrimSpace(*input.DefaultAccountTypeId) == "" {
		input.DefaultAccountTypeId = nil
	}
}

// validate input for both create & update. (id = "" for create)
func (input *NewSchedule) validate(ctx context.Context, id string) error {
	input.normalize()
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	count, err := utils.ResourceCountWhere[Schedule](ctx, "", "schedule_code = ? AND id <> ?", input.ScheduleCode, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewConflictError(utils.ErrCodeDuplicateCode, "schedule code %s already exists", input.ScheduleCode)
	}
	if input.DefaultAccountTypeId != nil {
		if err := utils.ValidateResourceId[AccountType](ctx, "", *input.DefaultAccountTypeId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return utils.NewValidationError(utils.ErrCodeInvalidInput, "account type %s not found", *input.DefaultAccountTypeId)
			}
			return err
		}
	}
	return nil
}

// findParentSchedule resolves an under-code against stored schedules:
// literal schedule code first, then integer ordinal. Returns nil when unresolved.
func findParentSchedule(tx *gorm.DB, underCode string) (*Schedule, error) {
	if isRootUnderCode(underCode) {
		return nil, nil
	}
	parentCode := parentCodeOf(underCode)

	var parents []*Schedule
	if err := tx.Where("schedule_code = ?", parentCode).Limit(1).Find(&parents).Error; err != nil {
		return nil, err
	}
	if len(parents) > 0 {
		return parents[0], nil
	}
	if ordinal, err := strconv.Atoi(parentCode); err == nil {
		if err := tx.Where("code = ?", ordinal).Order("created_at").Order("id").Limit(1).Find(&parents).Error; err != nil {
			return nil, err
		}
		if len(parents) > 0 {
			return parents[0], nil
		}
	}
	return nil, nil
}

// wouldCreateCycle walks up from parentId and reports whether id is reached.
func wouldCreateCycle(tx *gorm.DB, id string, parentId string) (bool, error) {
	var total int64
	if err := tx.Model(&Schedule{}).Count(&total).Error; err != nil {
		return false, err
	}
	current := parentId
	for steps := int64(0); current != "" && steps <= total; steps++ {
		if current == id {
			return true, nil
		}
		var next Schedule
		if err := tx.Select("id", "parent_schedule_id").Where("id = ?", current).First(&next).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		current = next.parentId()
	}
	return current != "", nil
}

func CreateSchedule(ctx context.Context, input *NewSchedule) (*Schedule, error) {

	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	schedule := Schedule{
		Code:                 input.Code,
		ScheduleCode:         input.ScheduleCode,
		UdfCode:              input.UdfCode,
		RefNo:                input.RefNo,
		Name:                 input.Name,
		TemplateCode:         input.TemplateCode,
		UnderCode:            input.UnderCode,
		ChartType:            input.ChartType,
		DefaultAccountTypeId: input.DefaultAccountTypeId,
		IsActive:             boolOr(input.IsActive, true),
		IsEditable:           boolOr(input.IsEditable, false),
		CreatedBy:            userName,
	}

	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		// parent may not exist yet (bulk loads); the under-code is kept for re-linking
		parent, err := findParentSchedule(tx, schedule.UnderCode)
		if err != nil {
			return err
		}
		schedule.ParentScheduleId = nil
		if parent != nil {
			schedule.ParentScheduleId = &parent.ID
		}
		if err := tx.Create(&schedule).Error; err != nil {
			return mapScheduleWriteError(err, schedule.ScheduleCode)
		}
		return saveHistory(tx, "", ActionCreate, schedule.ID, "schedules", nil, &schedule, "created schedule "+schedule.ScheduleCode)
	})
	if err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(schedule); err != nil {
		config.LogError(config.GetLogger(), "Schedule", "CreateSchedule", "clearing cache", schedule.ID, err)
	}
	return &schedule, nil
}

func UpdateSchedule(ctx context.Context, id string, input *NewSchedule) (*Schedule, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	var schedule Schedule
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&schedule).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError(utils.ErrCodeScheduleNotFound, "schedule %s not found", id)
			}
			return err
		}
		before := schedule

		parent, err := findParentSchedule(tx, input.UnderCode)
		if err != nil {
			return err
		}
		var parentId *string
		if parent != nil {
			if parent.ID == id {
				return utils.NewValidationError(utils.ErrCodeInvalidInput, "schedule %s cannot be its own parent", input.ScheduleCode)
			}
			cycle, err := wouldCreateCycle(tx, id, parent.ID)
			if err != nil {
				return err
			}
			if cycle {
				return utils.NewValidationError(utils.ErrCodeInvalidInput, "under code %s would make schedule %s its own ancestor", input.UnderCode, input.ScheduleCode)
			}
			parentId = &parent.ID
		}

		err = tx.Model(&schedule).Updates(map[string]interface{}{
			"Code":                 input.Code,
			"ScheduleCode":         input.ScheduleCode,
			"UdfCode":              input.UdfCode,
			"RefNo":                input.RefNo,
			"Name":                 input.Name,
			"TemplateCode":         input.TemplateCode,
			"UnderCode":            input.UnderCode,
			"ChartType":            input.ChartType,
			"DefaultAccountTypeId": input.DefaultAccountTypeId,
			"ParentScheduleId":     parentId,
			"IsActive":             boolOr(input.IsActive, utils.DereferencePtr(schedule.IsActive, true)),
			"IsEditable":           boolOr(input.IsEditable, utils.DereferencePtr(schedule.IsEditable)),
		}).Error
		if err != nil {
			return mapScheduleWriteError(err, input.ScheduleCode)
		}
		return saveHistory(tx, "", ActionUpdate, schedule.ID, "schedules", &before, &schedule, "updated schedule "+schedule.ScheduleCode)
	})
	if err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(schedule); err != nil {
		config.LogError(config.GetLogger(), "Schedule", "UpdateSchedule", "clearing cache", schedule.ID, err)
	}
	return &schedule, nil
}

// DeleteSchedule removes a schedule nothing refers to.
func DeleteSchedule(ctx context.Context, id string) (*Schedule, error) {

	var result Schedule
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError(utils.ErrCodeScheduleNotFound, "schedule %s not found", id)
			}
			return err
		}

		var usedBy []string
		for _, ref := range []struct {
			model  interface{}
			column string
			label  string
		}{
			{&RenameSchedule{}, "schedule_id", "rename schedules"},
			{&TaxRate{}, "schedule_id", "tax rates"},
			{&Schedule{}, "parent_schedule_id", "child schedules"},
		} {
			var count int64
			// renames of every group count, not only the caller's
			refTx := config.AcrossGroups(tx.Model(ref.model))
			if err := refTx.Where(ref.column+" = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				usedBy = append(usedBy, fmt.Sprintf("%d %s", count, ref.label))
			}
		}
		if len(usedBy) > 0 {
			return utils.NewConflictError(utils.ErrCodeInUse, "schedule %s is used by %s", result.ScheduleCode, strings.Join(usedBy, ", "))
		}

		if err := tx.Delete(&result).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionDelete, result.ID, "schedules", &result, nil, "deleted schedule "+result.ScheduleCode)
	})
	if err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(result); err != nil {
		config.LogError(config.GetLogger(), "Schedule", "DeleteSchedule", "clearing cache", result.ID, err)
	}
	return &result, nil
}

func GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	result, err := GetCatalogResource[Schedule](ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewNotFoundError(utils.ErrCodeScheduleNotFound, "schedule %s not found", id)
		}
		return nil, err
	}
	return result, nil
}

// GetSchedules lists active schedules ordered by name, optionally filtered by name or code.
func GetSchedules(ctx context.Context, search *string) ([]*Schedule, error) {

	db := config.GetDB()
	results := make([]*Schedule, 0)

	dbCtx := db.WithContext(ctx).Where("is_active = ?", true)
	if search != nil && strings.TrimSpace(*search) != "" {
		term := "%" + strings.ToLower(strings.TrimSpace(*search)) + "%"
		dbCtx = dbCtx.Where("LOWER(name) LIKE ? OR LOWER(schedule_code) LIKE ?", term, term)
	}
	if err := dbCtx.Order("name").Order("schedule_code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateSchedule(ctx context.Context, limit *int, after *string, search *string, isActive *bool) (*SchedulesConnection, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Schedule{})
	if search != nil && strings.TrimSpace(*search) != "" {
		term := "%" + strings.ToLower(strings.TrimSpace(*search)) + "%"
		dbCtx = dbCtx.Where("LOWER(name) LIKE ? OR LOWER(schedule_code) LIKE ?", term, term)
	}
	if isActive != nil {
		dbCtx = dbCtx.Where("is_active = ?", *isActive)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Schedule](dbCtx, pageLimit(limit), after, "name", ">")
	if err != nil {
		return nil, err
	}
	var schedulesConnection SchedulesConnection
	schedulesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		scheduleEdge := SchedulesEdge(edge)
		schedulesConnection.Edges = append(schedulesConnection.Edges, &scheduleEdge)
	}
	return &schedulesConnection, nil
}

func ToggleActiveSchedule(ctx context.Context, id string, isActive bool) (*Schedule, error) {
	result, err := ToggleActiveModel[Schedule](ctx, id, isActive)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, utils.NewNotFoundError(utils.ErrCodeScheduleNotFound, "schedule %s not found", id)
	}
	return result, err
}

// mapScheduleWriteError turns a unique index violation into DuplicateCode.
func mapScheduleWriteError(err error, scheduleCode string) error {
	if utils.IsDuplicateKeyError(err) {
		appErr := utils.NewConflictError(utils.ErrCodeDuplicateCode, "schedule code %s already exists", scheduleCode)
		appErr.Err = err
		return appErr
	}
	return err
}

func boolOr(v *bool, def bool) *bool {
	b := utils.DereferencePtr(v, def)
	return &b
}
