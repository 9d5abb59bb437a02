package dynamo

// DynamoDB attribute names used in update and condition expressions.
const (
	fieldOrderID          = "order_id"
	fieldOrderKey         = "order_key"
	fieldStatus           = "status"
	fieldNotes            = "notes"
	fieldMetadata         = "metadata"
	fieldPaymentReference = "payment_reference"
	fieldPaidAt           = "paid_at"
	fieldUpdatedAt        = "updated_at"

	fieldUniqueID  = "unique_id"
	fieldState     = "state"
	fieldRedirect  = "redirect"
	fieldReason    = "reason"
	fieldExpiresAt = "expires_at"

	fieldCartID = "cart_id"
	fieldItems  = "items"
)
