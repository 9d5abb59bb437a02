package dynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CartRepo empties shopper carts once their order is waiting on the processor.
type CartRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCartRepo(client *dynamodb.Client, tableName string) *CartRepo {
	return &CartRepo{client: client, tableName: tableName}
}

// Clear removes every item from the cart. A cart that no longer exists is already clear.
func (r *CartRepo) Clear(ctx context.Context, cartID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldUpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.Names["#items"] = fieldItems
	ue.Names["#pk"] = fieldCartID
	ue.Values[":none"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
	ue.Expr += ", #items = :none"

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldCartID, cartID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}
