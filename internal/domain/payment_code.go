package domain

import (
	"fmt"
	"strings"
)

// Method is the payment method half of a payment code.
type Method string

const (
	MethodCreditCard     Method = "CC"
	MethodDebitCard      Method = "DC"
	MethodDirectDebit    Method = "DD"
	MethodInvoice        Method = "IV"
	MethodPrepayment     Method = "PP"
	MethodOnlineTransfer Method = "OT"
	MethodVirtualAccount Method = "VA"
)

// Methods lists every method the processor integration knows about.
var Methods = []Method{
	MethodCreditCard,
	MethodDebitCard,
	MethodDirectDebit,
	MethodInvoice,
	MethodPrepayment,
	MethodOnlineTransfer,
	MethodVirtualAccount,
}

// Known reports whether m is one of Methods.
func (m Method) Known() bool {
	for _, k := range Methods {
		if k == m {
			return true
		}
	}
	return false
}

// Phase is the lifecycle half of a payment code.
type Phase string

const (
	PhasePreauthorization Phase = "PA"
	PhaseDebit            Phase = "DB"
	PhaseCapture          Phase = "CP"
	PhaseRegistration     Phase = "RG"
	PhaseConfirmation     Phase = "CF"
)

// PaymentCode is a parsed "<METHOD>.<PHASE>" pair such as DD.RG.
type PaymentCode struct {
	Method Method
	Phase  Phase
}

// ParsePaymentCode parses and upper-cases a raw payment code. Both halves must be non-empty.
// Unknown methods and phases parse fine; callers route them through their default paths.
func ParsePaymentCode(raw string) (PaymentCode, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(raw)), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return PaymentCode{}, fmt.Errorf("malformed payment code %q: %w", raw, ErrBadRequest)
	}
	return PaymentCode{Method: Method(parts[0]), Phase: Phase(parts[1])}, nil
}

func (c PaymentCode) String() string { return string(c.Method) + "." + string(c.Phase) }

// IsRegistration reports whether the code registers a reusable account (RG or CF).
func (c PaymentCode) IsRegistration() bool {
	return c.Phase == PhaseRegistration || c.Phase == PhaseConfirmation
}
