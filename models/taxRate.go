package models

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var maxTaxRate = decimal.NewFromInt(100)

type TaxRate struct {
	ID         int             `gorm:"primary_key" json:"id"`
	Name       string          `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Rate       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	ScheduleId *string         `gorm:"type:char(36);index" json:"schedule_id"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
}

type NewTaxRate struct {
	Name       string          `json:"name" validate:"required,max=100"`
	Rate       decimal.Decimal `json:"rate"`
	ScheduleId *string         `json:"schedule_id" validate:"omitempty,uuid"`
}

type AllTaxRate struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Rate       decimal.Decimal `json:"rate"`
	ScheduleId *string         `json:"schedule_id"`
	IsActive   *bool           `json:"is_active"`
}

type TaxRatesEdge Edge[TaxRate]

type TaxRatesConnection struct {
	PageInfo *PageInfo       `json:"pageInfo"`
	Edges    []*TaxRatesEdge `json:"edges"`
}

// names are unique, so the name alone is the cursor
func (tr TaxRate) GetCursor() string {
	return tr.Name
}

func (input *NewTaxRate) validate(ctx context.Context, id int) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.ScheduleId != nil && *input.ScheduleId == "" {
		input.ScheduleId = nil
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Rate.IsNegative() || input.Rate.GreaterThan(maxTaxRate) {
		return utils.NewValidationError(utils.ErrCodeInvalidInput, "rate must be between 0 and 100, got %s", input.Rate.String())
	}
	if err := utils.ValidateUnique[TaxRate](ctx, "", "name", input.Name, id); err != nil {
		return err
	}
	if input.ScheduleId != nil {
		if err := utils.ValidateResourceId[Schedule](ctx, "", *input.ScheduleId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return utils.NewValidationError(utils.ErrCodeInvalidInput, "schedule %s not found", *input.ScheduleId)
			}
			return err
		}
	}
	return nil
}

func CreateTaxRate(ctx context.Context, input *NewTaxRate) (*TaxRate, error) {

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	taxRate := TaxRate{
		Name:       input.Name,
		Rate:       input.Rate,
		ScheduleId: input.ScheduleId,
		IsActive:   utils.NewTrue(),
	}
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&taxRate).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionCreate, taxRate.ID, "tax_rates", nil, &taxRate, "created tax rate "+taxRate.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(taxRate); err != nil {
		return nil, err
	}
	return &taxRate, nil
}

func UpdateTaxRate(ctx context.Context, id int, input *NewTaxRate) (*TaxRate, error) {

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	var taxRate TaxRate
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&taxRate, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		before := taxRate
		if err := tx.Model(&taxRate).Updates(map[string]interface{}{
			"Name":       input.Name,
			"Rate":       input.Rate,
			"ScheduleId": input.ScheduleId,
		}).Error; err != nil {
			return err
		}
		return saveHistory(tx, "", ActionUpdate, taxRate.ID, "tax_rates", &before, &taxRate, "updated tax rate "+taxRate.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(taxRate); err != nil {
		return nil, err
	}
	return &taxRate, nil
}

func DeleteTaxRate(ctx context.Context, id int) (*TaxRate, error) {

	var result TaxRate
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
		return saveHistory(tx, "", ActionDelete, result.ID, "tax_rates", &result, nil, "deleted tax rate "+result.Name)
	})
	if err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(result); err != nil {
		return nil, err
	}
	return &result, nil
}

func GetTaxRate(ctx context.Context, id int) (*TaxRate, error) {
	return GetCatalogResource[TaxRate](ctx, id)
}

func GetTaxRates(ctx context.Context, name *string, scheduleId *string) ([]*TaxRate, error) {

	db := config.GetDB()
	results := make([]*TaxRate, 0)

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if scheduleId != nil && len(*scheduleId) > 0 {
		dbCtx = dbCtx.Where("schedule_id = ?", *scheduleId)
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListAllTaxRate(ctx context.Context) ([]*AllTaxRate, error) {
	return ListAllAdmin[TaxRate, AllTaxRate](ctx, "name")
}

func ToggleActiveTaxRate(ctx context.Context, id int, isActive bool) (*TaxRate, error) {
	return ToggleActiveModel[TaxRate](ctx, id, isActive)
}

func PaginateTaxRate(ctx context.Context, limit *int, after *string, scheduleId *string) (*TaxRatesConnection, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&TaxRate{})
	if scheduleId != nil && *scheduleId != "" {
		dbCtx = dbCtx.Where("schedule_id = ?", *scheduleId)
	}

	edges, pageInfo, err := FetchPagePureCursor[TaxRate](dbCtx, pageLimit(limit), after, "name", ">")
	if err != nil {
		return nil, err
	}
	var taxRatesConnection TaxRatesConnection
	taxRatesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		taxRateEdge := TaxRatesEdge(edge)
		taxRatesConnection.Edges = append(taxRatesConnection.Edges, &taxRateEdge)
	}
	return &taxRatesConnection, nil
}
