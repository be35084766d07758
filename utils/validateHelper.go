package utils

import (
	"context"
	"reflect"

	"bitbucket.org/auditdesk/audit_backend/config"
)

// check if id exists, scoped by groupId when given, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, groupId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, groupId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// ValidateUnique fails with a DuplicateName conflict when column = value exists outside exceptId.
func ValidateUnique[T any](ctx context.Context, groupId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if exceptId == nil || reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, groupId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, groupId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return NewConflictError(ErrCodeDuplicateName, "duplicate %s: %v", column, value)
	}
	return nil
}

// count records, using WHERE group_id = ? AND $condition
// group_id is blank for canonical catalogs
func ResourceCountWhere[T any](ctx context.Context, groupId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if groupId != "" {
		dbCtx = dbCtx.Where("group_id = ?", groupId)
	}
	dbCtx = dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
