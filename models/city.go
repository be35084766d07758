package models

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"gorm.io/gorm"
)

type City struct {
	ID         int    `gorm:"primary_key" json:"id"`
	StateId    int    `gorm:"index;not null" json:"state_id"`
	Code       string `gorm:"uniqueIndex;size:15;not null" json:"code"`
	Name       string `gorm:"size:100;not null" json:"name"`
	PostalCode string `gorm:"size:10" json:"postal_code"`
	IsActive   *bool  `gorm:"not null;default:true" json:"is_active"`
}

type NewCity struct {
	StateId    int    `json:"state_id" validate:"required,gt=0"`
	Code       string `json:"code" validate:"required,max=15"`
	Name       string `json:"name" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"max=10"`
}

type AllCity struct {
	ID         int    `json:"id"`
	StateId    int    `json:"state_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	IsActive   *bool  `json:"is_active"`
}

type CitiesEdge Edge[City]
type CitiesConnection struct {
	PageInfo *PageInfo     `json:"pageInfo"`
	Edges    []*CitiesEdge `json:"edges"`
}

func (c City) GetCursor() string {
	return c.Name
}

func (c City) GetId() any {
	return c.ID
}

// validate input for both create & update. (id = 0 for create)
func (input *NewCity) validate(ctx context.Context, id int) error {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	// state
	if err := utils.ValidateResourceId[State](ctx, "", input.StateId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return utils.NewValidationError(utils.ErrCodeInvalidInput, "state %d not found", input.StateId)
		}
		return err
	}
	// code
	if err := utils.ValidateUnique[City](ctx, "", "code", input.Code, id); err != nil {
		return err
	}
	return nil
}

func CreateCity(ctx context.Context, input *NewCity) (*City, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	city := City{
		StateId:    input.StateId,
		Code:       input.Code,
		Name:       input.Name,
		PostalCode: input.PostalCode,
		IsActive:   utils.NewTrue(),
	}

	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&city).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionCreate, city.ID, "cities", nil, &city, "created city "+city.Code)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(city); err != nil {
		return nil, err
	}
	return &city, nil
}

func UpdateCity(ctx context.Context, id int, input *NewCity) (*City, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	var city City
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&city, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		before := city
		if err := tx.Model(&city).Updates(map[string]interface{}{
			"StateId":    input.StateId,
			"Code":       input.Code,
			"Name":       input.Name,
			"PostalCode": input.PostalCode,
		}).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionUpdate, city.ID, "cities", &before, &city, "updated city "+city.Code)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(city); err != nil {
		return nil, err
	}
	return &city, nil
}

func DeleteCity(ctx context.Context, id int) (*City, error) {

	var result City
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&result, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if err := tx.Delete(&result).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionDelete, result.ID, "cities", &result, nil, "deleted city "+result.Code)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(result); err != nil {
		return nil, err
	}
	return &result, nil
}

func GetCity(ctx context.Context, id int) (*City, error) {
	return GetCatalogResource[City](ctx, id)
}

func GetCities(ctx context.Context, stateId *int, name *string) ([]*City, error) {

	db := config.GetDB()
	results := make([]*City, 0)

	dbCtx := db.WithContext(ctx)
	if stateId != nil && *stateId > 0 {
		dbCtx = dbCtx.Where("state_id = ?", *stateId)
	}
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ? OR code LIKE ?", "%"+*name+"%", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListAllCity(ctx context.Context) ([]*AllCity, error) {
	return ListAllAdmin[City, AllCity](ctx, "name")
}

func ToggleActiveCity(ctx context.Context, id int, isActive bool) (*City, error) {
	return ToggleActiveModel[City](ctx, id, isActive)
}

func PaginateCity(ctx context.Context, limit *int, after *string, stateId *int, name *string) (*CitiesConnection, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&City{})
	if stateId != nil && *stateId > 0 {
		dbCtx = dbCtx.Where("state_id = ?", *stateId)
	}
	if name != nil && *name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	edges, pageInfo, err := FetchPageCompositeCursor[City](dbCtx, pageLimit(limit), after, "name", ">")
	if err != nil {
		return nil, err
	}
	var citiesConnection CitiesConnection
	citiesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		cityEdge := CitiesEdge(edge)
		citiesConnection.Edges = append(citiesConnection.Edges, &cityEdge)
	}
	return &citiesConnection, nil
}
