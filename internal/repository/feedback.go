package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"agent-console/internal/domain"
)

const (
	skPrefixFeedback = "FEEDBACK#"
	ttlDuration      = 90 * 24 * time.Hour // 90-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client wraps a DynamoDB table holding message feedback.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sessionPK returns the DynamoDB partition key for a session token.
func sessionPK(token string) string {
	return "SESSION#" + token
}

// feedbackSK returns the sort key for feedback on one message. A later rating
// of the same message replaces the earlier one.
func feedbackSK(messageID string) string {
	return skPrefixFeedback + messageID
}

// ttlValue returns a Unix timestamp ttlDuration after t.
func ttlValue(t time.Time) int64 {
	return t.Add(ttlDuration).Unix()
}

// SubmitFeedback stores the rating of an assistant message.
func (c *Client) SubmitFeedback(ctx context.Context, rec domain.FeedbackRecord) error {
	if rec.SessionToken == "" || rec.MessageID == "" {
		return errors.New("repository: SubmitFeedback: session token and message id are required")
	}
	if !rec.Feedback.Valid() {
		return fmt.Errorf("repository: SubmitFeedback: invalid feedback %q", rec.Feedback)
	}
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      feedbackItem(rec),
	})
	if err != nil {
		return fmt.Errorf("repository: SubmitFeedback: %w", err)
	}
	return nil
}

func feedbackItem(rec domain.FeedbackRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: sessionPK(rec.SessionToken)},
		"SK":           &types.AttributeValueMemberS{Value: feedbackSK(rec.MessageID)},
		"sessionToken": &types.AttributeValueMemberS{Value: rec.SessionToken},
		"messageId":    &types.AttributeValueMemberS{Value: rec.MessageID},
		"feedback":     &types.AttributeValueMemberS{Value: string(rec.Feedback)},
		"kind":         &types.AttributeValueMemberS{Value: string(rec.Kind)},
		"content":      &types.AttributeValueMemberS{Value: rec.Content},
		"submittedAt":  &types.AttributeValueMemberS{Value: rec.SubmittedAt.UTC().Format(time.RFC3339)},
		"ttl":          &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue(rec.SubmittedAt))},
	}
}
