package main

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/auditdesk/audit_backend/config"
	"bitbucket.org/auditdesk/audit_backend/models"
	"bitbucket.org/auditdesk/audit_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enableAuditOutbox(t *testing.T) {
	t.Helper()
	t.Setenv("PUBSUB_PROJECT_ID", "proj")
	t.Setenv("PUBSUB_AUDIT_TOPIC", "audit")
}

type recordingPublisher struct {
	fail error
	sent []config.AuditMessage
}

func (r *recordingPublisher) publish(_ context.Context, msg config.AuditMessage) (string, error) {
	if r.fail != nil {
		return "", r.fail
	}
	r.sent = append(r.sent, msg)
	return "msg-" + msg.ReferenceType, nil
}

func countRows(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, config.GetDB().Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestAuditOutbox_PublishedAfterCommit(t *testing.T) {
	setupServer(t)
	enableAuditOutbox(t)
	ctx := utils.SetUserNameInContext(utils.SetUserIdInContext(context.Background(), "u1"), "alice")
	ctx = utils.SetCorrelationIdInContext(ctx, "cid-1")

	schedule, err := models.CreateSchedule(ctx, &models.NewSchedule{Code: 1, ScheduleCode: "A", Name: "Assets"})
	require.NoError(t, err)

	assert.EqualValues(t, 0, countRows(t, &models.History{}, "1 = 1"), "histories wait for the processor")
	assert.EqualValues(t, 1, countRows(t, &models.AuditOutboxRecord{}, "is_processed = ?", false))

	pub := &recordingPublisher{}
	p := NewAuditOutboxProcessor(config.GetLogger(), pub.publish)
	done, err := p.processOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, schedule.ID, pub.sent[0].ReferenceId)
	assert.Equal(t, models.ActionCreate, pub.sent[0].ActionType)
	assert.Equal(t, "cid-1", pub.sent[0].CorrelationId)

	var histories []models.History
	require.NoError(t, config.GetDB().Find(&histories).Error)
	require.Len(t, histories, 1)
	assert.Equal(t, "alice", histories[0].UserName)
	assert.Equal(t, schedule.ID, histories[0].ReferenceId)

	var rec models.AuditOutboxRecord
	require.NoError(t, config.GetDB().First(&rec).Error)
	assert.True(t, rec.IsProcessed)
	require.NotNil(t, rec.PublishedMessageId)
	assert.Equal(t, "msg-schedules", *rec.PublishedMessageId)
	assert.Nil(t, rec.LockedBy)

	done, err = p.processOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, done, "processed records are not sent twice")
}

func TestAuditOutbox_FailedPublishIsRetried(t *testing.T) {
	setupServer(t)
	enableAuditOutbox(t)
	ctx := utils.SetUserIdInContext(context.Background(), "u1")

	_, err := models.CreateState(ctx, &models.NewState{Country: "MM", Code: "YGN", Name: "Yangon"})
	require.NoError(t, err)

	pub := &recordingPublisher{fail: errors.New("topic unavailable")}
	p := NewAuditOutboxProcessor(config.GetLogger(), pub.publish)
	done, err := p.processOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, done)

	var rec models.AuditOutboxRecord
	require.NoError(t, config.GetDB().First(&rec).Error)
	assert.False(t, rec.IsProcessed)
	require.NotNil(t, rec.LastProcessError)
	assert.Equal(t, "topic unavailable", *rec.LastProcessError)
	assert.Nil(t, rec.LockedAt)
	assert.EqualValues(t, 0, countRows(t, &models.History{}, "1 = 1"))

	pub.fail = nil
	done, err = p.processOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.EqualValues(t, 1, countRows(t, &models.History{}, "reference_type = ?", "states"))
}

func TestAuditOutbox_WithoutPublisherWritesHistories(t *testing.T) {
	setupServer(t)
	enableAuditOutbox(t)
	ctx := utils.SetUserIdInContext(context.Background(), "u1")
	_, err := models.CreateSchedule(ctx, &models.NewSchedule{Code: 1, ScheduleCode: "A", Name: "Assets"})
	require.NoError(t, err)

	done, err := NewAuditOutboxProcessor(config.GetLogger(), nil).processOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.EqualValues(t, 1, countRows(t, &models.History{}, "reference_type = ?", "schedules"))
}
