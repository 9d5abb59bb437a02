package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-payment-notify/internal/domain"
)

// OrderRepo provides typed DynamoDB operations for the orders table. Writes are
// applied to the passed order only after DynamoDB accepted them.
type OrderRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOrderRepo(client *dynamodb.Client, tableName string) *OrderRepo {
	return &OrderRepo{client: client, tableName: tableName}
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldOrderID, orderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	var o domain.Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Put stores an order as-is. The shop owns order creation; this exists for seeding.
func (r *OrderRepo) Put(ctx context.Context, o *domain.Order) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, o *domain.Order, status domain.OrderStatus, note string) error {
	now := time.Now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:    status,
		fieldUpdatedAt: now,
	})
	if err != nil {
		return err
	}
	n := domain.OrderNote{Text: note, CreatedAt: now}
	if err := ue.appendToList(fieldNotes, n); err != nil {
		return err
	}
	if err := r.update(ctx, o.OrderID, ue); err != nil {
		return err
	}
	o.Status = status
	o.Notes = append(o.Notes, n)
	o.UpdatedAt = now
	return nil
}

func (r *OrderRepo) AddNote(ctx context.Context, o *domain.Order, note string) error {
	now := time.Now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{fieldUpdatedAt: now})
	if err != nil {
		return err
	}
	n := domain.OrderNote{Text: note, CreatedAt: now}
	if err := ue.appendToList(fieldNotes, n); err != nil {
		return err
	}
	if err := r.update(ctx, o.OrderID, ue); err != nil {
		return err
	}
	o.Notes = append(o.Notes, n)
	o.UpdatedAt = now
	return nil
}

// AddMeta sets one metadata entry. Orders written without a metadata map get the
// whole map in one SET since a nested path cannot be created on a missing attribute.
func (r *OrderRepo) AddMeta(ctx context.Context, o *domain.Order, key, value string) error {
	now := time.Now().UTC()
	fields := map[string]interface{}{fieldUpdatedAt: now}
	if len(o.Metadata) == 0 {
		fields[fieldMetadata] = map[string]string{key: value}
	}
	ue, err := buildUpdateExpr(fields)
	if err != nil {
		return err
	}
	if len(o.Metadata) > 0 {
		ue.setMapEntry(fieldMetadata, key, value)
	}
	if err := r.update(ctx, o.OrderID, ue); err != nil {
		return err
	}
	if o.Metadata == nil {
		o.Metadata = make(map[string]string)
	}
	o.Metadata[key] = value
	o.UpdatedAt = now
	return nil
}

// MarkPaid moves the order to processing and records the processor reference.
func (r *OrderRepo) MarkPaid(ctx context.Context, o *domain.Order, reference string) error {
	now := time.Now().UTC()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:           domain.OrderProcessing,
		fieldPaymentReference: reference,
		fieldPaidAt:           now,
		fieldUpdatedAt:        now,
	})
	if err != nil {
		return err
	}
	if err := r.update(ctx, o.OrderID, ue); err != nil {
		return err
	}
	o.Status = domain.OrderProcessing
	o.PaymentReference = reference
	o.PaidAt = &now
	o.UpdatedAt = now
	return nil
}

// update runs ue against an existing order; a missing order is ErrNotFound.
func (r *OrderRepo) update(ctx context.Context, orderID string, ue *updateExpr) error {
	ue.Names["#pk"] = fieldOrderID
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldOrderID, orderID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueNone,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return err
}
