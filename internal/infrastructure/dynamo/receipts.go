package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-payment-notify/internal/domain"
)

// ReceiptRepo records which notification unique ids were already handled.
type ReceiptRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewReceiptRepo(client *dynamodb.Client, tableName string) *ReceiptRepo {
	return &ReceiptRepo{client: client, tableName: tableName}
}

// Claim stores rc unless its unique id is already known. When it is, the stored
// receipt is returned together with an error wrapping domain.ErrDuplicate.
func (r *ReceiptRepo) Claim(ctx context.Context, rc *domain.Receipt) (*domain.Receipt, error) {
	item, err := attributevalue.MarshalMap(rc)
	if err != nil {
		return nil, fmt.Errorf("marshal receipt: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldUniqueID},
	})
	if err == nil {
		return rc, nil
	}
	if !isConditionFailed(err) {
		return nil, err
	}
	existing, gerr := r.Get(ctx, rc.UniqueID)
	if gerr != nil {
		return nil, gerr
	}
	return existing, fmt.Errorf("notification %s: %w", rc.UniqueID, domain.ErrDuplicate)
}

func (r *ReceiptRepo) Get(ctx context.Context, uniqueID string) (*domain.Receipt, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUniqueID, uniqueID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("receipt %s: %w", uniqueID, domain.ErrNotFound)
	}
	var rc domain.Receipt
	if err := attributevalue.UnmarshalMap(out.Item, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Finalize marks a claimed receipt done and stores the redirect handed to the processor.
func (r *ReceiptRepo) Finalize(ctx context.Context, uniqueID, orderID, redirect string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldState:    domain.ReceiptDone,
		fieldRedirect: redirect,
		fieldOrderID:  orderID,
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUniqueID, uniqueID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// Hold parks a claimed receipt for manual review. Held receipts are never released.
func (r *ReceiptRepo) Hold(ctx context.Context, uniqueID, reason string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldState:  domain.ReceiptReview,
		fieldReason: reason,
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUniqueID, uniqueID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// Release drops an unfinished claim so the processor's redelivery can try again.
// Finished receipts are left alone.
func (r *ReceiptRepo) Release(ctx context.Context, uniqueID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldUniqueID, uniqueID),
		ConditionExpression:      aws.String("#state = :processing"),
		ExpressionAttributeNames: map[string]string{"#state": fieldState},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":processing": &types.AttributeValueMemberS{Value: string(domain.ReceiptProcessing)},
		},
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}
