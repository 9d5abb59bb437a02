package domain

// Result is the classified outcome of a notification.
type Result string

const (
	ResultSuccess Result = "success"
	ResultPending Result = "pending"
	ResultError   Result = "error"
)

// VerifiedNotification is a notification whose hash was checked and whose outcome
// was classified. It is a value: build it once, pass it along, never mutate it.
type VerifiedNotification struct {
	Notification Notification
	Code         PaymentCode
	Result       Result
	ErrorCode    string
	ErrorMessage string
}

func (v VerifiedNotification) IsSuccess() bool { return v.Result == ResultSuccess }
func (v VerifiedNotification) IsPending() bool { return v.Result == ResultPending }
func (v VerifiedNotification) IsError() bool   { return v.Result == ResultError }

// RedirectKind tells the caller where to send the shopper after reconciliation.
type RedirectKind string

const (
	RedirectToReceived               RedirectKind = "received"
	RedirectToCancel                 RedirectKind = "cancel"
	RedirectToReceivedAfterCartClear RedirectKind = "received_after_cart_clear"
)

// ReconciliationOutcome is what the reconciler hands back to its caller.
// ErrorCode is set only for RedirectToCancel. Warning carries a non-fatal
// follow-up problem that was recorded on the order.
type ReconciliationOutcome struct {
	Kind      RedirectKind
	ErrorCode string
	Warning   string
}
