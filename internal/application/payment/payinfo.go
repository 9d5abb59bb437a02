package payment

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-payment-notify/internal/domain"
	"gopkg.in/yaml.v3"
)

// Templates holds the settlement-instruction text per payment method.
type Templates map[domain.Method]string

// DefaultTemplates covers the methods whose money moves outside the checkout.
var DefaultTemplates = Templates{
	domain.MethodInvoice: "Please transfer the amount of {AMOUNT} {CURRENCY} to the following account after your order has arrived:\n\n" +
		"Account holder: {CONNECTOR_ACCOUNT_HOLDER}\nIBAN: {CONNECTOR_ACCOUNT_IBAN}\nBIC: {CONNECTOR_ACCOUNT_BIC}\n\n" +
		"Please use only this identification number as the descriptor: {IDENTIFICATION_SHORTID}",
	domain.MethodPrepayment: "Please transfer the amount of {AMOUNT} {CURRENCY} to the following account:\n\n" +
		"Account holder: {CONNECTOR_ACCOUNT_HOLDER}\nIBAN: {CONNECTOR_ACCOUNT_IBAN}\nBIC: {CONNECTOR_ACCOUNT_BIC}\n\n" +
		"Please use only this identification number as the descriptor: {IDENTIFICATION_SHORTID}",
	domain.MethodDirectDebit: "The amount of {AMOUNT} {CURRENCY} will be debited from this account within the next days:\n\n" +
		"IBAN: {Iban}\n\nThe booking contains the mandate reference ID: {Ident}\nand the creditor identifier: {CreditorId}\n\n" +
		"Please ensure that there will be sufficient funds on the corresponding account.",
}

// placeholders pairs each template token with the notification field that fills it.
// Order matters only for determinism; tokens never overlap.
var placeholders = []struct {
	token string
	field string
}{
	{"{AMOUNT}", domain.FieldAmount},
	{"{CURRENCY}", domain.FieldCurrency},
	{"{CONNECTOR_ACCOUNT_HOLDER}", domain.FieldConnectorHolder},
	{"{CONNECTOR_ACCOUNT_IBAN}", domain.FieldConnectorIBAN},
	{"{CONNECTOR_ACCOUNT_BIC}", domain.FieldConnectorBIC},
	{"{IDENTIFICATION_SHORTID}", domain.FieldShortID},
	{"{Iban}", domain.FieldAccountIBAN},
	{"{Ident}", domain.FieldAccountIdentification},
	{"{CreditorId}", domain.FieldCreditorID},
}

// LoadTemplates reads method -> template overrides from a YAML file and merges them
// over DefaultTemplates. An empty path returns the defaults.
//
//	IV: "Pay {AMOUNT} {CURRENCY} to {CONNECTOR_ACCOUNT_IBAN}"
func LoadTemplates(path string) (Templates, error) {
	out := make(Templates, len(DefaultTemplates))
	for m, t := range DefaultTemplates {
		out[m] = t
	}
	if path == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payment info templates: %w", err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse payment info templates: %w", err)
	}
	for k, t := range overrides {
		m := domain.Method(strings.ToUpper(k))
		if _, ok := DefaultTemplates[m]; !ok {
			return nil, fmt.Errorf("payment info template for method %q: %w", k, domain.ErrUnsupportedMethod)
		}
		out[m] = t
	}
	return out, nil
}

// Formatter renders settlement instructions for invoice, prepayment and direct debit.
// It performs no I/O and is a pure function of its input.
type Formatter struct {
	templates Templates
}

func NewFormatter(t Templates) *Formatter {
	if t == nil {
		t = DefaultTemplates
	}
	return &Formatter{templates: t}
}

// Format returns the instructions text and true, or "" and false for methods that
// need none. Tokens whose field is missing are left in the text as they are.
func (f *Formatter) Format(vn domain.VerifiedNotification) (string, bool) {
	if _, settles := DefaultTemplates[vn.Code.Method]; !settles {
		return "", false
	}
	tmpl, ok := f.templates[vn.Code.Method]
	if !ok {
		return "", false
	}
	var pairs []string
	for _, p := range placeholders {
		if v := vn.Notification.Get(p.field); v != "" {
			pairs = append(pairs, p.token, v)
		}
	}
	return strings.NewReplacer(pairs...).Replace(tmpl), true
}
