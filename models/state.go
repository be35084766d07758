package models

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"gorm.io/gorm"
)

type State struct {
	ID       int    `gorm:"primary_key" json:"id"`
	Country  string `gorm:"index;size:50;not null" json:"country"`
	Code     string `gorm:"uniqueIndex;size:10;not null" json:"code"`
	Name     string `gorm:"size:100;not null" json:"name"`
	IsActive *bool  `gorm:"not null;default:true" json:"is_active"`
}

type NewState struct {
	Country string `json:"country" validate:"required,max=50"`
	Code    string `json:"code" validate:"required,max=10"`
	Name    string `json:"name" validate:"required,max=100"`
}

type AllState struct {
	ID       int    `json:"id"`
	Country  string `json:"country"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active"`
}

type StatesEdge Edge[State]
type StatesConnection struct {
	PageInfo *PageInfo     `json:"pageInfo"`
	Edges    []*StatesEdge `json:"edges"`
}

func (st State) GetCursor() string {
	return st.Name
}

func (st State) GetId() any {
	return st.ID
}

// validate input for both create & update. (id = 0 for create)
func (input *NewState) validate(ctx context.Context, id int) error {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	// code
	if err := utils.ValidateUnique[State](ctx, "", "code", input.Code, id); err != nil {
		return err
	}
	// name
	if err := utils.ValidateUnique[State](ctx, "", "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateState(ctx context.Context, input *NewState) (*State, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	state := State{
		Country:  input.Country,
		Code:     input.Code,
		Name:     input.Name,
		IsActive: utils.NewTrue(),
	}

	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&state).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionCreate, state.ID, "states", nil, &state, "created state "+state.Code)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(state); err != nil {
		return nil, err
	}
	return &state, nil
}

func UpdateState(ctx context.Context, id int, input *NewState) (*State, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	var state State
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&state, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		before := state
		if err := tx.Model(&state).Updates(map[string]interface{}{
			"Country": input.Country,
			"Code":    input.Code,
			"Name":    input.Name,
		}).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionUpdate, state.ID, "states", &before, &state, "updated state "+state.Code)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(state); err != nil {
		return nil, err
	}
	return &state, nil
}

func DeleteState(ctx context.Context, id int) (*State, error) {

	var result State
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&result, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		// Do not delete if any City uses this state
		var count int64
		if err := tx.Model(&City{}).Where("state_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.NewConflictError(utils.ErrCodeInUse, "state %s is used by %d cities", result.Code, count)
		}

		if err := tx.Delete(&result).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionDelete, result.ID, "states", &result, nil, "deleted state "+result.Code)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(result); err != nil {
		return nil, err
	}
	return &result, nil
}

func GetState(ctx context.Context, id int) (*State, error) {
	return GetCatalogResource[State](ctx, id)
}

func GetStates(ctx context.Context, country *string, name *string) ([]*State, error) {

	db := config.GetDB()
	results := make([]*State, 0)

	dbCtx := db.WithContext(ctx)
	if country != nil && len(*country) > 0 {
		dbCtx = dbCtx.Where("country = ?", *country)
	}
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ? OR code LIKE ?", "%"+*name+"%", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListAllState(ctx context.Context) ([]*AllState, error) {
	return ListAllAdmin[State, AllState](ctx, "name")
}

func ToggleActiveState(ctx context.Context, id int, isActive bool) (*State, error) {
	return ToggleActiveModel[State](ctx, id, isActive)
}

func PaginateState(ctx context.Context, limit *int, after *string, country *string, name *string) (*StatesConnection, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&State{})
	if country != nil && *country != "" {
		dbCtx = dbCtx.Where("country = ?", *country)
	}
	if name != nil && *name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	edges, pageInfo, err := FetchPageCompositeCursor[State](dbCtx, pageLimit(limit), after, "name", ">")
	if err != nil {
		return nil, err
	}
	var statesConnection StatesConnection
	statesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		stateEdge := StatesEdge(edge)
		statesConnection.Edges = append(statesConnection.Edges, &stateEdge)
	}
	return &statesConnection, nil
}
