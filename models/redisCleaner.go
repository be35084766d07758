package models

import (
	"bitbucket.org/auditdesk/audit_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list & map if exists
}

// remove both item & list + map
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj Schedule) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Schedule](obj.ID)
}

func (obj Schedule) RemoveAllRedis() error {
	return utils.ClearRedisAdmin[Schedule]()
}

func (obj State) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[State](obj.ID)
}

func (obj State) RemoveAllRedis() error {
	return utils.RemoveRedisList[AllState]("")
}

func (obj City) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[City](obj.ID)
}

func (obj City) RemoveAllRedis() error {
	return utils.RemoveRedisList[AllCity]("")
}

func (obj TaxRate) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[TaxRate](obj.ID)
}

func (obj TaxRate) RemoveAllRedis() error {
	return utils.RemoveRedisList[AllTaxRate]("")
}

func (obj AccountType) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[AccountType](obj.ID)
}

func (obj AccountType) RemoveAllRedis() error {
	return utils.RemoveRedisList[AllAccountType]("")
}
