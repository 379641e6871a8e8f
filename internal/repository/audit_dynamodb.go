package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"translation-relay/internal/domain"
)

const skPrefixEvent = "EVENT#"

// dynamodbAPI is the minimal DynamoDB interface required by AuditStore.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// AuditStore appends audit events to a DynamoDB table keyed by session.
type AuditStore struct {
	api       dynamodbAPI
	tableName string
	retention time.Duration
}

type Option func(*AuditStore)

// WithRetention sets a TTL attribute on every item. Zero keeps items forever.
func WithRetention(d time.Duration) Option {
	return func(s *AuditStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(api dynamodbAPI, tableName string, opts ...Option) (*AuditStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	s := &AuditStore{api: api, tableName: tableName}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// sessionPK returns the partition key for a session's audit trail.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// eventSK orders events chronologically within a session; the event id
// breaks ties between events written in the same instant.
func eventSK(ts time.Time, eventID string) string {
	return skPrefixEvent + ts.UTC().Format(time.RFC3339Nano) + "#" + eventID
}

// InsertEvent writes one audit event. Events are never overwritten.
func (s *AuditStore) InsertEvent(ctx context.Context, ev domain.AuditEvent) error {
	if ev.ID == "" || ev.Kind == "" {
		return errors.New("repository: InsertEvent: event id and kind are required")
	}
	item, err := s.eventItem(ev)
	if err != nil {
		return fmt.Errorf("repository: InsertEvent: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: InsertEvent: %w", err)
	}
	return nil
}

func (s *AuditStore) eventItem(ev domain.AuditEvent) (map[string]types.AttributeValue, error) {
	details := ev.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(ev.SessionID)},
		"SK":        &types.AttributeValueMemberS{Value: eventSK(ev.Timestamp, ev.ID)},
		"eventId":   &types.AttributeValueMemberS{Value: ev.ID},
		"sessionId": &types.AttributeValueMemberS{Value: ev.SessionID},
		"eventType": &types.AttributeValueMemberS{Value: ev.Kind},
		"details":   &types.AttributeValueMemberS{Value: string(raw)},
		"createdAt": &types.AttributeValueMemberS{Value: ev.Timestamp.UTC().Format(time.RFC3339Nano)},
	}
	if s.retention > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ev.Timestamp.Add(s.retention).Unix())}
	}
	return item, nil
}
