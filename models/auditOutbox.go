package models

import (
	"context"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditOutboxRecord is an audit entry queued inside the business transaction.
// A processor publishes it after commit and then writes the History row.
type AuditOutboxRecord struct {
	ID                 int        `gorm:"primary_key" json:"id"`
	GroupId            string     `gorm:"size:64;index;not null;default:''" json:"group_id"`
	ActionType         string     `gorm:"size:10;not null" json:"action_type"`
	Before             string     `gorm:"type:text" json:"before"`
	After              string     `gorm:"type:text" json:"after"`
	Description        string     `gorm:"type:text;not null" json:"description"`
	ReferenceId        string     `gorm:"size:64;index" json:"reference_id"`
	ReferenceType      string     `gorm:"size:255" json:"reference_type"`
	UserId             string     `gorm:"size:64;not null" json:"user_id"`
	UserName           string     `gorm:"size:100" json:"user_name"`
	CorrelationId      string     `gorm:"size:64" json:"correlation_id"`
	IsProcessed        bool       `gorm:"not null;default:false;index" json:"is_processed"`
	PublishedMessageId *string    `gorm:"size:255" json:"published_message_id"`
	LockedAt           *time.Time `json:"locked_at"`
	LockedBy           *string    `gorm:"size:100" json:"locked_by"`
	LastProcessError   *string    `gorm:"type:text" json:"last_process_error"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ProcessedAt        *time.Time `json:"processed_at"`
}

func newAuditOutboxRecord(h History) AuditOutboxRecord {
	return AuditOutboxRecord{
		GroupId:       h.GroupId,
		ActionType:    h.ActionType,
		Before:        h.Before,
		After:         h.After,
		Description:   h.Description,
		ReferenceId:   h.ReferenceId,
		ReferenceType: h.ReferenceType,
		UserId:        h.UserId,
		UserName:      h.UserName,
	}
}

// History is the audit row the record turns into; it keeps the original time.
func (r AuditOutboxRecord) History() History {
	return History{
		GroupId:       r.GroupId,
		ActionType:    r.ActionType,
		Before:        r.Before,
		After:         r.After,
		Description:   r.Description,
		ReferenceId:   r.ReferenceId,
		ReferenceType: r.ReferenceType,
		UserId:        r.UserId,
		UserName:      r.UserName,
		CreatedAt:     r.CreatedAt,
	}
}

func (r AuditOutboxRecord) Message() config.AuditMessage {
	return config.AuditMessage{
		ID:            r.ID,
		GroupId:       r.GroupId,
		ActionType:    r.ActionType,
		ReferenceId:   r.ReferenceId,
		ReferenceType: r.ReferenceType,
		Before:        r.Before,
		After:         r.After,
		Description:   r.Description,
		UserId:        r.UserId,
		UserName:      r.UserName,
		CorrelationId: r.CorrelationId,
		CreatedAt:     r.CreatedAt,
	}
}

// outbox work spans every group
func outboxDB(ctx context.Context) *gorm.DB {
	return config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
}

// ClaimAuditOutbox locks up to limit unprocessed records for workerId.
// Locks older than lockTTL are treated as abandoned.
func ClaimAuditOutbox(ctx context.Context, workerId string, limit int, lockTTL time.Duration) ([]AuditOutboxRecord, error) {
	now := time.Now().UTC()
	staleBefore := now.Add(-lockTTL)

	var claimed []AuditOutboxRecord
	err := outboxDB(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("is_processed = ?", false).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(limit)
		if tx.Dialector.Name() == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		ids := make([]int, 0, len(claimed))
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &workerId
			ids = append(ids, claimed[i].ID)
		}
		return tx.Model(&AuditOutboxRecord{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{"locked_at": now, "locked_by": workerId}).Error
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteAuditOutbox writes the History row and marks the record processed.
func CompleteAuditOutbox(ctx context.Context, record AuditOutboxRecord, messageId string) error {
	return outboxDB(ctx).Transaction(func(tx *gorm.DB) error {
		history := record.History()
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		updates := map[string]interface{}{
			"is_processed":       true,
			"processed_at":       now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_process_error": nil,
		}
		if messageId != "" {
			updates["published_message_id"] = messageId
		}
		return tx.Model(&AuditOutboxRecord{}).Where("id = ?", record.ID).Updates(updates).Error
	})
}

// ReleaseAuditOutbox unlocks a record after a failed attempt so it is retried.
func ReleaseAuditOutbox(ctx context.Context, record AuditOutboxRecord, cause error) error {
	msg := cause.Error()
	return outboxDB(ctx).Model(&AuditOutboxRecord{}).Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"last_process_error": msg,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
}
