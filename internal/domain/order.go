package domain

import "time"

// OrderStatus mirrors the shop's order lifecycle.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderOnHold     OrderStatus = "on-hold"
	OrderProcessing OrderStatus = "processing"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
)

// Order metadata keys written by the notification processor.
const (
	MetaPaymentInfo     = "payment-info"
	MetaRegistrationID  = "payment-registration-id"
	MetaUniqueID        = "payment-unique-id"
	MetaShortID         = "payment-short-id"
	MetaFollowUpWarning = "payment-followup-warning"
	// MetaFollowUpSent holds the registration unique id whose follow-up debit went out.
	// It is written before the debit is sent.
	MetaFollowUpSent    = "payment-followup-sent"
	MetaReviewRequired  = "payment-review-required"
)

// Order is owned by the shop. The processor reads it, changes its status and appends
// notes and metadata; it never creates or deletes one.
type Order struct {
	OrderID          string            `json:"id" dynamodbav:"order_id"`
	OrderKey         string            `json:"-" dynamodbav:"order_key"`
	Status           OrderStatus       `json:"status" dynamodbav:"status"`
	PaymentMethod    string            `json:"payment_method" dynamodbav:"payment_method"`
	BillingEmail     string            `json:"-" dynamodbav:"billing_email"`
	CartID           string            `json:"-" dynamodbav:"cart_id"`
	Total            string            `json:"total" dynamodbav:"total"`
	Currency         string            `json:"currency" dynamodbav:"currency"`
	PaymentReference string            `json:"payment_reference,omitempty" dynamodbav:"payment_reference"`
	PaidAt           *time.Time        `json:"paid_at,omitempty" dynamodbav:"paid_at"`
	Notes            []OrderNote       `json:"notes" dynamodbav:"notes"`
	Metadata         map[string]string `json:"metadata" dynamodbav:"metadata"`
	CreatedAt        time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time         `json:"updated" dynamodbav:"updated_at"`
}

// OrderNote is an append-only entry in the order history.
type OrderNote struct {
	Text      string    `json:"text" dynamodbav:"text"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

// Meta returns the metadata value for key, or "".
func (o *Order) Meta(key string) string {
	if o.Metadata == nil {
		return ""
	}
	return o.Metadata[key]
}

// Cancellable reports whether a shopper may still cancel the order.
func (o *Order) Cancellable() bool {
	return o.Status == OrderPending || o.Status == OrderFailed
}
