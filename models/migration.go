package models

import (
	"bitbucket.org/auditdesk/audit_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()

	return db.AutoMigrate(
		&AccountType{},
		&AuditOutboxRecord{},
		&City{},
		&History{},
		&RenameSchedule{},
		&Schedule{},
		&State{},
		&TaxRate{},
	)
}
