package payment

import (
	"context"

	"github.com/go-payment-notify/internal/domain"
)

// Order notes written by the settlement rules.
const (
	NoteManualCapture   = "Payment reservation successful. Awaiting manual capture in the processor back office."
	NoteAwaitingPayment = "Awaiting payment."
)

// SettlementRule decides what a successful notification does to the order once
// registration handling is done. Rules are evaluated top to bottom; the first one
// whose predicates both match is applied.
type SettlementRule struct {
	Name   string
	Method func(domain.Method) bool
	Phase  func(domain.Phase) bool
	Apply  func(ctx context.Context, orders OrderStore, o *domain.Order, vn domain.VerifiedNotification) error
}

// Matches reports whether the rule applies to code.
func (r SettlementRule) Matches(code domain.PaymentCode) bool {
	return r.Method(code.Method) && r.Phase(code.Phase)
}

// DefaultSettlementRules encodes whether money has moved:
//
//  1. reservation (PA) for anything but invoice and prepayment: on-hold, manual capture note
//  2. reservation (PA) for prepayment: on-hold, shopper still has to transfer
//  3. everything else (invoice PA included): captured, mark paid
func DefaultSettlementRules() []SettlementRule {
	return []SettlementRule{
		{
			Name:   "reservation-manual-capture",
			Method: methodNot(domain.MethodInvoice, domain.MethodPrepayment),
			Phase:  phaseIs(domain.PhasePreauthorization),
			Apply:  holdForManualCapture,
		},
		{
			Name:   "reservation-prepayment",
			Method: methodIs(domain.MethodPrepayment),
			Phase:  phaseIs(domain.PhasePreauthorization),
			Apply:  holdAwaitingPayment,
		},
		{
			Name:   "captured",
			Method: anyMethod,
			Phase:  anyPhase,
			Apply:  markCaptured,
		},
	}
}

// MatchSettlementRule returns the first rule matching code.
func MatchSettlementRule(rules []SettlementRule, code domain.PaymentCode) (SettlementRule, bool) {
	for _, r := range rules {
		if r.Matches(code) {
			return r, true
		}
	}
	return SettlementRule{}, false
}

func holdForManualCapture(ctx context.Context, orders OrderStore, o *domain.Order, _ domain.VerifiedNotification) error {
	if err := orders.AddNote(ctx, o, NoteManualCapture); err != nil {
		return err
	}
	return orders.UpdateStatus(ctx, o, domain.OrderOnHold, NoteAwaitingPayment+" "+NoteManualCapture)
}

func holdAwaitingPayment(ctx context.Context, orders OrderStore, o *domain.Order, _ domain.VerifiedNotification) error {
	return orders.UpdateStatus(ctx, o, domain.OrderOnHold, NoteAwaitingPayment)
}

func markCaptured(ctx context.Context, orders OrderStore, o *domain.Order, vn domain.VerifiedNotification) error {
	sid := vn.Notification.ShortID()
	if err := orders.AddMeta(ctx, o, domain.MetaUniqueID, vn.Notification.UniqueID()); err != nil {
		return err
	}
	if err := orders.AddMeta(ctx, o, domain.MetaShortID, sid); err != nil {
		return err
	}
	return orders.MarkPaid(ctx, o, sid)
}

func anyMethod(domain.Method) bool { return true }
func anyPhase(domain.Phase) bool   { return true }

func methodIs(ms ...domain.Method) func(domain.Method) bool {
	return func(m domain.Method) bool {
		for _, x := range ms {
			if m == x {
				return true
			}
		}
		return false
	}
}

func methodNot(ms ...domain.Method) func(domain.Method) bool {
	is := methodIs(ms...)
	return func(m domain.Method) bool { return !is(m) }
}

func phaseIs(ps ...domain.Phase) func(domain.Phase) bool {
	return func(p domain.Phase) bool {
		for _, x := range ps {
			if p == x {
				return true
			}
		}
		return false
	}
}
