package models

import (
	"context"
	"errors"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"gorm.io/gorm"
)

// first find in redis, then in db, cache result
// (may return RecordNotFound error)
func GetCatalogResource[T any](ctx context.Context, id any, associations ...string) (*T, error) {

	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result, err = utils.FetchSingleModel[T](ctx, id, associations...)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[T](result, id); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// list all catalog rows, redis or db, cache result
func ListAllAdmin[ModelT any, AllModelT any](ctx context.Context, orders ...string) ([]*AllModelT, error) {

	results, err := utils.RetrieveRedisList[AllModelT]("")
	if err != nil {
		return nil, err
	}
	if results == nil {
		db := config.GetDB()
		var model ModelT
		dbCtx := db.WithContext(ctx).Model(&model)
		for _, order := range orders {
			dbCtx = dbCtx.Order(order)
		}
		results = make([]*AllModelT, 0)
		if err = dbCtx.Find(&results).Error; err != nil {
			return nil, err
		}

		if err := utils.StoreRedisList[AllModelT](results, ""); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// ToggleActiveModel flips is_active on a catalog row and records *ACTIVE*/*INACTIVE*.
func ToggleActiveModel[T RedisCleaner](ctx context.Context, id any, isActive bool) (*T, error) {

	var result T
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		updateTx := tx.Model(&result).UpdateColumn("is_active", isActive)
		if updateTx.Error != nil {
			return updateTx.Error
		}

		actionType := ActionInactive
		if isActive {
			actionType = ActionActive
		}
		return saveHistory(tx, "", actionType, id, updateTx.Statement.Table, nil, nil, "toggled "+utils.GetTypeName[T]())
	})
	if err != nil {
		return nil, err
	}

	if err := RemoveRedisBoth(result); err != nil {
		config.LogError(config.GetLogger(), utils.GetTypeName[T](), "ToggleActive", "clearing cache", id, err)
	}
	return &result, nil
}
