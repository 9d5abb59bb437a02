package dynamo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a SET expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET expression.
// Fields are sorted so the same map always yields the same expression.
func buildUpdateExpr(updates map[string]interface{}) (*updateExpr, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := &updateExpr{
		Expr:   "SET ",
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	for i, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(updates[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Names[nameKey] = k
		ue.Values[valueKey] = av
		if i > 0 {
			ue.Expr += ", "
		}
		ue.Expr += fmt.Sprintf("%s = %s", nameKey, valueKey)
	}
	return ue, nil
}

// appendToList adds "field = list_append(if_not_exists(field, []), [item])" to the expression.
func (ue *updateExpr) appendToList(field string, item interface{}) error {
	av, err := attributevalue.Marshal([]interface{}{item})
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", field, err)
	}
	ue.Names["#lst"] = field
	ue.Values[":lstItem"] = av
	ue.Values[":lstEmpty"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
	ue.Expr += ", #lst = list_append(if_not_exists(#lst, :lstEmpty), :lstItem)"
	return nil
}

// setMapEntry adds "field.key = value". The map attribute must already exist.
func (ue *updateExpr) setMapEntry(field, key, value string) {
	ue.Names["#map"] = field
	ue.Names["#mapKey"] = key
	ue.Values[":mapVal"] = &types.AttributeValueMemberS{Value: value}
	ue.Expr += ", #map.#mapKey = :mapVal"
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
