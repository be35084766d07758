package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RenameSchedule is one group's display name for an editable schedule.
type RenameSchedule struct {
	ID                 string    `gorm:"type:char(36);primary_key" json:"id"`
	ScheduleId         string    `gorm:"type:char(36);not null;uniqueIndex:idx_rename_schedule_group" json:"schedule_id"`
	GroupId            string    `gorm:"size:64;not null;uniqueIndex:idx_rename_schedule_group;index" json:"group_id"`
	RenameScheduleName string    `gorm:"size:255;not null" json:"rename_schedule_name"`
	CreatedBy          string    `gorm:"size:100" json:"created_by"`
	UpdatedBy          string    `gorm:"size:100" json:"updated_by"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRenameSchedule struct {
	GroupId    string `json:"group_id" validate:"required,max=64"`
	ScheduleId string `json:"schedule_id" validate:"required"`
	Name       string `json:"rename_schedule_name" validate:"required,max=255"`
}

func (r *RenameSchedule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// renameTarget is everything the top-down rename rules look at.
type renameTarget struct {
	schedule      *Schedule
	parent        *Schedule
	parentRenamed bool
	siblingNames  []string
}

// validateRenameUpsert applies, in order: not found, not editable,
// parent not renamed, duplicate sibling name.
func validateRenameUpsert(scheduleId string, t renameTarget, newName string) error {
	if t.schedule == nil {
		return utils.NewNotFoundError(utils.ErrCodeScheduleNotFound, "schedule %s not found", scheduleId)
	}
	if !t.schedule.editable() {
		return utils.NewConflictError(utils.ErrCodeScheduleNotEditable, "schedule %s is not editable", t.schedule.ScheduleCode)
	}
	// a non-editable parent is visible to every group
	if t.parent != nil && t.parent.editable() && !t.parentRenamed {
		return utils.NewConflictError(utils.ErrCodeParentNotRenamed,
			"parent schedule %s must be renamed before %s", t.parent.ScheduleCode, t.schedule.ScheduleCode)
	}
	for _, name := range t.siblingNames {
		if strings.EqualFold(strings.TrimSpace(name), newName) {
			return utils.NewConflictError(utils.ErrCodeDuplicateSiblingName,
				"name %q is already used by a sibling of %s", newName, t.schedule.ScheduleCode)
		}
	}
	return nil
}

// validateRenameDelete blocks removal while any direct child keeps a rename.
func validateRenameDelete(schedule *Schedule, renamedChildren []*Schedule) error {
	if len(renamedChildren) == 0 {
		return nil
	}
	labels := make([]string, 0, len(renamedChildren))
	for _, child := range renamedChildren {
		labels = append(labels, child.ScheduleCode+" - "+child.Name)
	}
	code := ""
	if schedule != nil {
		code = schedule.ScheduleCode
	}
	return utils.NewConflictError(utils.ErrCodeHasRenamedChildren,
		"remove the renames of child schedules first: %s (parent %s)", utils.JoinMessages(labels), code)
}

func loadRenameTarget(tx *gorm.DB, groupId string, scheduleId string) (renameTarget, error) {
	var t renameTarget

	var schedule Schedule
	if err := tx.Where("id = ?", scheduleId).First(&schedule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return t, nil
		}
		return t, err
	}
	t.schedule = &schedule

	if parentId := schedule.parentId(); parentId != "" {
		var parent Schedule
		err := tx.Where("id = ?", parentId).First(&parent).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return t, err
		}
		if err == nil {
			t.parent = &parent
			var count int64
			if err := tx.Model(&RenameSchedule{}).
				Where("group_id = ? AND schedule_id = ?", groupId, parentId).
				Count(&count).Error; err != nil {
				return t, err
			}
			t.parentRenamed = count > 0
		}
	}

	siblings := tx.Table("rename_schedules").
		Joins("JOIN schedules ON schedules.id = rename_schedules.schedule_id").
		Where("rename_schedules.group_id = ? AND schedules.id <> ?", groupId, scheduleId)
	if parentId := schedule.parentId(); parentId != "" {
		siblings = siblings.Where("schedules.parent_schedule_id = ?", parentId)
	} else {
		siblings = siblings.Where("schedules.parent_schedule_id IS NULL")
	}
	if err := siblings.Pluck("rename_schedules.rename_schedule_name", &t.siblingNames).Error; err != nil {
		return t, err
	}
	return t, nil
}

// UpsertRenameSchedule creates or updates the group's display name for a schedule.
func UpsertRenameSchedule(ctx context.Context, input *NewRenameSchedule) (*RenameSchedule, error) {

	input.GroupId = strings.TrimSpace(input.GroupId)
	input.ScheduleId = strings.TrimSpace(input.ScheduleId)
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	var result RenameSchedule
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		target, err := loadRenameTarget(tx, input.GroupId, input.ScheduleId)
		if err != nil {
			return err
		}
		if err := validateRenameUpsert(input.ScheduleId, target, input.Name); err != nil {
			return err
		}

		var existing []*RenameSchedule
		if err := tx.Where("group_id = ? AND schedule_id = ?", input.GroupId, input.ScheduleId).
			Limit(1).Find(&existing).Error; err != nil {
			return err
		}

		if len(existing) > 0 {
			before := *existing[0]
			result = *existing[0]
			if err := tx.Model(&result).Updates(map[string]interface{}{
				"RenameScheduleName": input.Name,
				"UpdatedBy":          userName,
			}).Error; err != nil {
				return err
			}
			return saveHistory(tx, input.GroupId, ActionUpdate, result.ID, "rename_schedules", &before, &result,
				fmt.Sprintf("renamed schedule %s to %s", target.schedule.ScheduleCode, input.Name))
		}

		result = RenameSchedule{
			ScheduleId:         input.ScheduleId,
			GroupId:            input.GroupId,
			RenameScheduleName: input.Name,
			CreatedBy:          userName,
			UpdatedBy:          userName,
		}
		if err := insertRenameSchedule(tx, &result, target.schedule.ScheduleCode); err != nil {
			return err
		}
		return saveHistory(tx, input.GroupId, ActionCreate, result.ID, "rename_schedules", nil, &result,
			fmt.Sprintf("renamed schedule %s to %s", target.schedule.ScheduleCode, input.Name))
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// insertRenameSchedule maps a unique index hit on (schedule_id, group_id) to a
// DuplicateName conflict; the read check above misses pairs inserted concurrently.
func insertRenameSchedule(tx *gorm.DB, rename *RenameSchedule, scheduleCode string) error {
	if err := tx.Create(rename).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			appErr := utils.NewConflictError(utils.ErrCodeDuplicateName, "schedule %s is already renamed for this group", scheduleCode)
			appErr.Err = err
			return appErr
		}
		return err
	}
	return nil
}

// DeleteRenameSchedule removes a rename and its audit rows, children first.
func DeleteRenameSchedule(ctx context.Context, groupId string, scheduleId string) (*RenameSchedule, error) {

	var result RenameSchedule
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		err := tx.Where("group_id = ? AND schedule_id = ?", groupId, scheduleId).First(&result).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError(utils.ErrCodeNotFound, "schedule %s is not renamed for this group", scheduleId)
			}
			return err
		}

		var schedule Schedule
		if err := tx.Where("id = ?", scheduleId).Limit(1).Find(&schedule).Error; err != nil {
			return err
		}

		renamedChildren := make([]*Schedule, 0)
		if err := tx.Where("parent_schedule_id = ?", scheduleId).
			Where("id IN (?)", tx.Model(&RenameSchedule{}).Select("schedule_id").Where("group_id = ?", groupId)).
			Order("schedule_code").
			Find(&renamedChildren).Error; err != nil {
			return err
		}
		if err := validateRenameDelete(&schedule, renamedChildren); err != nil {
			return err
		}

		if err := tx.Delete(&result).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ? AND reference_type = ? AND reference_id = ?", groupId, "rename_schedules", result.ID).
			Delete(&History{}).Error; err != nil {
			return err
		}
		// queued entries would otherwise resurface as histories
		return tx.Where("group_id = ? AND reference_type = ? AND reference_id = ? AND is_processed = ?", groupId, "rename_schedules", result.ID, false).
			Delete(&AuditOutboxRecord{}).Error
	})
	if err != nil {
		return nil, err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"field":       "RenameSchedule",
		"group_id":    groupId,
		"schedule_id": scheduleId,
	}).Info("rename removed")
	return &result, nil
}

func GetRenameSchedules(ctx context.Context, groupId string) ([]*RenameSchedule, error) {
	db := config.GetDB()
	results := make([]*RenameSchedule, 0)
	err := db.WithContext(ctx).Where("group_id = ?", groupId).Order("created_at").Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// renameMap indexes display names by schedule id.
func renameMap(renames []*RenameSchedule) map[string]string {
	m := make(map[string]string, len(renames))
	for _, r := range renames {
		m[r.ScheduleId] = r.RenameScheduleName
	}
	return m
}
