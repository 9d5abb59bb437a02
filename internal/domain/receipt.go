package domain

import "time"

// ReceiptState tracks how far a notification got.
type ReceiptState string

const (
	ReceiptProcessing ReceiptState = "processing"
	ReceiptDone       ReceiptState = "done"
	// ReceiptReview is a claim kept after money moved but the order could not be
	// updated. Redeliveries are refused until someone resolves it.
	ReceiptReview     ReceiptState = "review"
)

// Receipt records that a notification with a given unique id was handled.
// PK: unique_id. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Receipt struct {
	UniqueID  string       `json:"unique_id" dynamodbav:"unique_id"`
	OrderID   string       `json:"order_id" dynamodbav:"order_id"`
	State     ReceiptState `json:"state" dynamodbav:"state"`
	Redirect  string       `json:"redirect" dynamodbav:"redirect"`
	Reason    string       `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	CreatedAt time.Time    `json:"created" dynamodbav:"created_at"`
	ExpiresAt int64        `json:"expires_at" dynamodbav:"expires_at"`
}
