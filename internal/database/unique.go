package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Unique values (tool server names, client names, client ids, usernames) are
// enforced with one item per value in the UniqueKeys table, written in the
// same transaction as the record that owns it.
const (
	uniqueKeyAttr   = "Key"
	uniqueOwnerAttr = "OwnerId"
)

func uniqueKey(kind, field, value string) string {
	return kind + "/" + field + "/" + value
}

// txOp is one transaction item plus the error reported when its condition fails
type txOp struct {
	item   types.TransactWriteItem
	onFail error
}

func (c *Client) claimUnique(key, owner string) txOp {
	return txOp{
		item: types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(c.Tables.UniqueKeys),
				Item: map[string]types.AttributeValue{
					uniqueKeyAttr:   &types.AttributeValueMemberS{Value: key},
					uniqueOwnerAttr: &types.AttributeValueMemberS{Value: owner},
				},
				ConditionExpression:      aws.String("attribute_not_exists(#k)"),
				ExpressionAttributeNames: map[string]string{"#k": uniqueKeyAttr},
			},
		},
		onFail: ErrAlreadyExists,
	}
}

func (c *Client) releaseUnique(key, owner string) txOp {
	return txOp{
		item: types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(c.Tables.UniqueKeys),
				Key: map[string]types.AttributeValue{
					uniqueKeyAttr: &types.AttributeValueMemberS{Value: key},
				},
				ConditionExpression:      aws.String("#o = :owner"),
				ExpressionAttributeNames: map[string]string{"#o": uniqueOwnerAttr},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":owner": &types.AttributeValueMemberS{Value: owner},
				},
			},
		},
		onFail: ErrConditionFailed,
	}
}

// lookupOwner resolves a unique value to the id of the record holding it
func (c *Client) lookupOwner(ctx context.Context, key string) (string, error) {
	result, err := c.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.Tables.UniqueKeys),
		Key: map[string]types.AttributeValue{
			uniqueKeyAttr: &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up unique key: %w", err)
	}
	if result.Item == nil {
		return "", ErrNotFound
	}

	owner, ok := result.Item[uniqueOwnerAttr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("unique key %s has no owner", key)
	}
	return owner.Value, nil
}

// transact applies all ops atomically. When DynamoDB cancels the transaction
// because of a failed condition, the error of the first failing op is returned.
func (c *Client) transact(ctx context.Context, ops ...txOp) error {
	items := make([]types.TransactWriteItem, len(ops))
	for i, op := range ops {
		items[i] = op.item
	}

	_, err := c.DynamoDB.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, reason := range tce.CancellationReasons {
			if i < len(ops) && aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return ops[i].onFail
			}
		}
	}
	return fmt.Errorf("transaction failed: %w", err)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func unixValue(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}
