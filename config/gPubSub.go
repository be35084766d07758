package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// AuditMessage is the payload published for every committed audit entry.
type AuditMessage struct {
	ID            int       `json:"id"`
	GroupId       string    `json:"group_id"`
	ActionType    string    `json:"action_type"`
	ReferenceId   string    `json:"reference_id"`
	ReferenceType string    `json:"reference_type"`
	Before        string    `json:"before,omitempty"`
	After         string    `json:"after,omitempty"`
	Description   string    `json:"description"`
	UserId        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	CorrelationId string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

const pubsubConnectAttempts = 3

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// set by Cloud Run
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

// AuditTopic is the Pub/Sub topic audit entries are published to.
func AuditTopic() string {
	return strings.TrimSpace(os.Getenv("PUBSUB_AUDIT_TOPIC"))
}

// AuditOutboxEnabled routes audit entries through the outbox table when Pub/Sub
// is configured. Otherwise histories are written in the business transaction.
//
// Set via env:
// - PUBSUB_PROJECT_ID (or GOOGLE_CLOUD_PROJECT) and PUBSUB_AUDIT_TOPIC
func AuditOutboxEnabled() bool {
	return getPubSubProjectID() != "" && AuditTopic() != ""
}

// GetPubSubClient returns the shared client, connecting on first use.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func GetPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	var lastErr error
	for attempt := 1; attempt <= pubsubConnectAttempts; attempt++ {
		c, err := pubsub.NewClient(ctx, projectID, opts...)
		if err == nil {
			log.Printf("pubsub client ready (project_id=%s attempt=%d)", projectID, attempt)
			pubsubClient = c
			return c, nil
		}
		lastErr = err
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", projectID, attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("pubsub client: %w", lastErr)
}

// UsePubSubClient replaces the shared client. Used by tests with a pstest server.
func UsePubSubClient(c *pubsub.Client) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	pubsubClient = c
}

// PublishAuditMessage publishes msg to the audit topic and returns the server-assigned id.
func PublishAuditMessage(ctx context.Context, msg AuditMessage) (string, error) {
	topicName := AuditTopic()
	if topicName == "" {
		return "", errors.New("PUBSUB_AUDIT_TOPIC is required")
	}
	client, err := GetPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := client.Topic(topicName).Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"group_id":       msg.GroupId,
			"reference_type": msg.ReferenceType,
			"action_type":    msg.ActionType,
		},
	})
	return result.Get(ctx)
}
