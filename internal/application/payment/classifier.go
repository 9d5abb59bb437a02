package payment

import (
	"strings"

	"github.com/go-payment-notify/internal/domain"
)

// Processing result and status codes used by the processor.
const (
	resultAck = "ACK"
	resultNok = "NOK"

	statusSuccess = "90"
	statusWaiting = "80"
)

// Classifier turns an authenticated notification into exactly one outcome.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// Classify parses the payment code and selects Success, Pending or Error. Absent or
// contradictory flags yield a *domain.ClassificationError instead of a guess.
//
//	ACK + 90 or no status -> Success
//	ACK + 80              -> Pending
//	NOK + any other code  -> Error
func (c *Classifier) Classify(n domain.Notification) (domain.VerifiedNotification, error) {
	fail := func(reason string) (domain.VerifiedNotification, error) {
		return domain.VerifiedNotification{}, &domain.ClassificationError{TransactionID: n.TransactionID(), Reason: reason}
	}

	if c := n.Conflicts(); len(c) > 0 {
		return fail("fields sent more than once: " + strings.Join(c, ", "))
	}

	code, err := domain.ParsePaymentCode(n.Get(domain.FieldPaymentCode))
	if err != nil {
		return fail(err.Error())
	}

	vn := domain.VerifiedNotification{Notification: n, Code: code}
	result := strings.ToUpper(n.Get(domain.FieldProcessingResult))
	status := n.Get(domain.FieldProcessingStatusCode)

	switch result {
	case resultAck:
		switch status {
		case "", statusSuccess:
			vn.Result = domain.ResultSuccess
		case statusWaiting:
			vn.Result = domain.ResultPending
		default:
			return fail("result ACK contradicts status code " + status)
		}
	case resultNok:
		if status == statusSuccess || status == statusWaiting {
			return fail("result NOK contradicts status code " + status)
		}
		vn.Result = domain.ResultError
		vn.ErrorCode = n.Get(domain.FieldProcessingReturnCode)
		vn.ErrorMessage = n.Get(domain.FieldProcessingReturn)
	case "":
		return fail("missing processing result")
	default:
		return fail("unknown processing result " + result)
	}
	return vn, nil
}
