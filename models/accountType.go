package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountType struct {
	ID        string    `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccountType struct {
	Name string `json:"name" validate:"required,max=100"`
}

type AllAccountType struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active"`
}

func (at *AccountType) BeforeCreate(tx *gorm.DB) error {
	if at.ID == "" {
		at.ID = uuid.NewString()
	}
	return nil
}

// names are unique ignoring case, matching how imports look them up
func (input *NewAccountType) validate(ctx context.Context, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	count, err := utils.ResourceCountWhere[AccountType](ctx, "", "LOWER(name) = ? AND id <> ?", strings.ToLower(input.Name), id)
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewConflictError(utils.ErrCodeDuplicateName, "account type %s already exists", input.Name)
	}
	return nil
}

func CreateAccountType(ctx context.Context, input *NewAccountType) (*AccountType, error) {

	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	accountType := AccountType{
		Name:     input.Name,
		IsActive: utils.NewTrue(),
	}
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&accountType).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionCreate, accountType.ID, "account_types", nil, &accountType, "created account type "+accountType.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(accountType); err != nil {
		return nil, err
	}
	return &accountType, nil
}

func UpdateAccountType(ctx context.Context, id string, input *NewAccountType) (*AccountType, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	var accountType AccountType
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&accountType).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		before := accountType
		if err := tx.Model(&accountType).Update("Name", input.Name).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionUpdate, accountType.ID, "account_types", &before, &accountType, "updated account type "+accountType.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(accountType); err != nil {
		return nil, err
	}
	return &accountType, nil
}

func DeleteAccountType(ctx context.Context, id string) (*AccountType, error) {

	var result AccountType
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&result).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		var count int64
		if err := tx.Model(&Schedule{}).Where("default_account_type_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.NewConflictError(utils.ErrCodeInUse, "account type %s is used by %d schedules", result.Name, count)
		}
		if err := tx.Delete(&result).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionDelete, result.ID, "account_types", &result, nil, "deleted account type "+result.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(result); err != nil {
		return nil, err
	}
	return &result, nil
}

func GetAccountType(ctx context.Context, id string) (*AccountType, error) {
	return GetCatalogResource[AccountType](ctx, id)
}

func ListAllAccountType(ctx context.Context) ([]*AllAccountType, error) {
	return ListAllAdmin[AccountType, AllAccountType](ctx, "name")
}

func ToggleActiveAccountType(ctx context.Context, id string, isActive bool) (*AccountType, error) {
	return ToggleActiveModel[AccountType](ctx, id, isActive)
}
