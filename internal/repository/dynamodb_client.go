package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chat-exchange/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores the exchange audit trail in a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// turnSK returns the sort key for the turn at position seq. Zero padding keeps
// lexical and conversational order identical.
func turnSK(seq int) string {
	return fmt.Sprintf("%s%06d", skPrefixTurn, seq)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// Record persists an audit entry together with the updated session meta.
func (c *Client) Record(ctx context.Context, entry domain.AuditEntry) error {
	if strings.TrimSpace(entry.SessionID) == "" {
		return errors.New("repository: Record: session id is required")
	}
	if err := c.SaveTurn(ctx, c.NewAuditRecord(entry), c.NewSessionMeta(entry)); err != nil {
		return fmt.Errorf("repository: Record %s: %w", entry.Phase, err)
	}
	return nil
}

// SaveTurn writes the turn record and the session meta in one transaction.
// A turn record is written at most once.
func (c *Client) SaveTurn(ctx context.Context, rec domain.AuditRecord, meta domain.SessionMeta) error {
	if rec.PK == "" || rec.SK == "" {
		return errors.New("repository: SaveTurn: record PK and SK are required")
	}
	if meta.PK == "" || meta.SK == "" {
		return errors.New("repository: SaveTurn: meta PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                recordItem(rec),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// ListTurns returns up to limit audited turns of a session in conversation
// order, following result pages. A limit of zero or less returns every turn.
func (c *Client) ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.AuditRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var recs []domain.AuditRecord
	for {
		if limit > 0 {
			in.Limit = aws.Int32(pageLimit(limit - len(recs)))
		}
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListTurns query: %w", err)
		}
		for _, item := range out.Items {
			rec, err := itemToRecord(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListTurns unmarshal: %w", err)
			}
			recs = append(recs, rec)
		}
		if len(out.LastEvaluatedKey) == 0 || (limit > 0 && len(recs) >= limit) {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	if recs == nil {
		recs = []domain.AuditRecord{}
	}
	return recs, nil
}

// pageLimit clamps n to the range DynamoDB accepts for Limit.
func pageLimit(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}

// GetSessionMeta returns the session's meta record. ok is false when the
// session was never audited.
func (c *Client) GetSessionMeta(ctx context.Context, sessionID string) (meta domain.SessionMeta, ok bool, err error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.SessionMeta{}, false, fmt.Errorf("repository: GetSessionMeta get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.SessionMeta{}, false, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return domain.SessionMeta{}, false, fmt.Errorf("repository: GetSessionMeta decode turns: %w", err)
	}
	backend, _ := strAttr(out.Item, "backend")           // allow empty
	lastActivity, _ := strAttr(out.Item, "lastActivity") // allow empty
	return domain.SessionMeta{
		PK:           sessionPK(sessionID),
		SK:           skMeta,
		SessionID:    sessionID,
		Backend:      backend,
		LastActivity: lastActivity,
		Turns:        turns,
	}, true, nil
}

// NewAuditRecord builds the stored form of an audit entry.
func (c *Client) NewAuditRecord(entry domain.AuditEntry) domain.AuditRecord {
	created := entry.Turn.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	return domain.AuditRecord{
		PK:        sessionPK(entry.SessionID),
		SK:        turnSK(entry.Seq),
		SessionID: entry.SessionID,
		TurnID:    entry.Turn.ID,
		Sender:    string(entry.Turn.Sender),
		Text:      entry.Turn.Text,
		Phase:     entry.Phase,
		CreatedAt: created.UTC().Format(time.RFC3339Nano),
		TTL:       c.ttlValue(),
	}
}

// NewSessionMeta builds the meta record reflecting entry.
func (c *Client) NewSessionMeta(entry domain.AuditEntry) domain.SessionMeta {
	return domain.SessionMeta{
		PK:           sessionPK(entry.SessionID),
		SK:           skMeta,
		SessionID:    entry.SessionID,
		Backend:      entry.Backend,
		LastActivity: c.now().UTC().Format(time.RFC3339),
		Turns:        entry.Turns,
		TTL:          c.ttlValue(),
	}
}

// itemToRecord converts a DynamoDB attribute map to an AuditRecord.
func itemToRecord(item map[string]types.AttributeValue) (domain.AuditRecord, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.AuditRecord{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.AuditRecord{}, err
	}
	sender, err := strAttr(item, "sender")
	if err != nil {
		return domain.AuditRecord{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.AuditRecord{}, err
	}
	sessionID, _ := strAttr(item, "sessionId") // allow empty
	turnID, _ := strAttr(item, "turnId")       // allow empty
	phase, _ := strAttr(item, "phase")         // allow empty
	created, _ := strAttr(item, "createdAt")   // allow empty

	return domain.AuditRecord{
		PK:        pk,
		SK:        sk,
		SessionID: sessionID,
		TurnID:    turnID,
		Sender:    sender,
		Text:      text,
		Phase:     phase,
		CreatedAt: created,
	}, nil
}

func recordItem(rec domain.AuditRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: rec.PK},
		"SK":        &types.AttributeValueMemberS{Value: rec.SK},
		"sessionId": &types.AttributeValueMemberS{Value: rec.SessionID},
		"turnId":    &types.AttributeValueMemberS{Value: rec.TurnID},
		"sender":    &types.AttributeValueMemberS{Value: rec.Sender},
		"text":      &types.AttributeValueMemberS{Value: rec.Text},
		"phase":     &types.AttributeValueMemberS{Value: rec.Phase},
		"createdAt": &types.AttributeValueMemberS{Value: rec.CreatedAt},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
	}
}

func metaItem(meta domain.SessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: meta.PK},
		"SK":           &types.AttributeValueMemberS{Value: meta.SK},
		"sessionId":    &types.AttributeValueMemberS{Value: meta.SessionID},
		"backend":      &types.AttributeValueMemberS{Value: meta.Backend},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
