package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionActive   = "*ACTIVE*"
	ActionInactive = "*INACTIVE*"
	ActionImport   = "IMPORT"
)

const auditSavePoint = "audit_history"

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	GroupId       string    `gorm:"size:64;index;not null;default:''" json:"group_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceId   string    `gorm:"size:64;index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        string    `gorm:"size:64;index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type HistoriesEdge Edge[History]
type HistoriesConnection struct {
	Edges    []*HistoriesEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

func (h History) GetId() any {
	return h.ID
}

func (h History) GetCursor() string {
	return h.CreatedAt.UTC().Format("2006-01-02 15:04:05.999999")
}

// buildHistory assembles an audit entry. The acting user comes from context;
// groupId is empty for canonical catalog changes.
func buildHistory(ctx context.Context,
	groupId string,
	actionType string,
	referenceId any,
	referenceType string,
	before interface{},
	after interface{},
	description string) (History, error) {

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return History{}, errors.New("user id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	history := History{
		GroupId:       groupId,
		ActionType:    actionType,
		Description:   description,
		ReferenceId:   fmt.Sprint(referenceId),
		ReferenceType: referenceType,
		UserId:        userId,
		UserName:      userName,
	}
	if before != nil {
		b, _ := json.Marshal(before)
		history.Before = string(b)
	}
	if after != nil {
		a, _ := json.Marshal(after)
		history.After = string(a)
	}
	return history, nil
}

// createHistory writes the audit row in tx, or queues it in the outbox when
// Pub/Sub is configured. Queued entries become histories after commit.
func createHistory(tx *gorm.DB,
	groupId string,
	actionType string,
	referenceId any,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {

	ctx := tx.Statement.Context
	history, err := buildHistory(ctx, groupId, actionType, referenceId, referenceType, before, after, description)
	if err != nil {
		return err
	}
	if config.AuditOutboxEnabled() {
		record := newAuditOutboxRecord(history)
		record.CorrelationId, _ = utils.GetCorrelationIdFromContext(ctx)
		return tx.Create(&record).Error
	}
	return tx.Create(&history).Error
}

// saveHistory records the audit row under a savepoint.
// Unless AUDIT_LOG_BLOCKING is set, a failed audit write is rolled back to the
// savepoint and logged while the surrounding business change still commits.
func saveHistory(tx *gorm.DB,
	groupId string,
	actionType string,
	referenceId any,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {

	if config.AuditLogBlocking() {
		return createHistory(tx, groupId, actionType, referenceId, referenceType, before, after, description)
	}

	logger := config.GetLogger()
	if err := tx.SavePoint(auditSavePoint).Error; err != nil {
		logAuditFailure(logger, referenceType, referenceId, err)
		return nil
	}
	if err := createHistory(tx, groupId, actionType, referenceId, referenceType, before, after, description); err != nil {
		if rbErr := tx.RollbackTo(auditSavePoint).Error; rbErr != nil {
			// the transaction is unusable without the savepoint
			return fmt.Errorf("rollback audit savepoint: %w", rbErr)
		}
		logAuditFailure(logger, referenceType, referenceId, err)
	}
	return nil
}

func logAuditFailure(logger *logrus.Logger, referenceType string, referenceId any, err error) {
	logger.WithFields(logrus.Fields{
		"field":          "History",
		"reference_type": referenceType,
		"reference_id":   fmt.Sprint(referenceId),
		"error":          err.Error(),
	}).Warn("audit entry not written")
}

func GetHistories(ctx context.Context, groupId string, referenceType *string, referenceId *string) ([]*History, error) {

	db := config.GetDB()
	var results []*History

	dbCtx := db.WithContext(ctx).Where("group_id = ?", groupId)
	if referenceType != nil && len(*referenceType) > 0 {
		dbCtx = dbCtx.Where("reference_type = ?", *referenceType)
	}
	if referenceId != nil && len(*referenceId) > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", *referenceId)
	}
	err := dbCtx.Order("created_at DESC").Order("id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateHistory(ctx context.Context,
	groupId string,
	limit *int,
	after *string,
	referenceType *string,
	actionType *string,
) (*HistoriesConnection, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&History{}).Where("group_id = ?", groupId)
	if referenceType != nil && *referenceType != "" {
		dbCtx = dbCtx.Where("reference_type = ?", *referenceType)
	}
	if actionType != nil && *actionType != "" {
		dbCtx = dbCtx.Where("action_type = ?", *actionType)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[History](dbCtx, pageLimit(limit), after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var historiesConnection HistoriesConnection
	historiesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		historiesEdge := HistoriesEdge(edge)
		historiesConnection.Edges = append(historiesConnection.Edges, &historiesEdge)
	}

	return &historiesConnection, nil
}
