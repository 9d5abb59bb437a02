package domain

import (
	"slices"
	"strings"
)

// Field names of the processor's result notification. The processor posts dotted
// names (IDENTIFICATION.UNIQUEID); NewNotification normalises them to underscores.
const (
	FieldPaymentCode           = "PAYMENT_CODE"
	FieldTransactionID         = "IDENTIFICATION_TRANSACTIONID"
	FieldUniqueID              = "IDENTIFICATION_UNIQUEID"
	FieldShortID               = "IDENTIFICATION_SHORTID"
	FieldReferenceID           = "IDENTIFICATION_REFERENCEID"
	FieldCreditorID            = "IDENTIFICATION_CREDITOR_ID"
	FieldProcessingResult      = "PROCESSING_RESULT"
	FieldProcessingStatusCode  = "PROCESSING_STATUS_CODE"
	FieldProcessingReturnCode  = "PROCESSING_RETURN_CODE"
	FieldProcessingReturn      = "PROCESSING_RETURN"
	FieldAmount                = "PRESENTATION_AMOUNT"
	FieldCurrency              = "PRESENTATION_CURRENCY"
	FieldConnectorHolder       = "CONNECTOR_ACCOUNT_HOLDER"
	FieldConnectorIBAN         = "CONNECTOR_ACCOUNT_IBAN"
	FieldConnectorBIC          = "CONNECTOR_ACCOUNT_BIC"
	FieldAccountIBAN           = "ACCOUNT_IBAN"
	FieldAccountIdentification = "ACCOUNT_IDENTIFICATION"
	FieldSecurityHash          = "CRITERION_SECRET"
	FieldFrontendEnabled       = "FRONTEND_ENABLED"
)

// Notification is the raw result message posted by the payment processor.
// It is immutable: the field map is copied on the way in and on the way out.
type Notification struct {
	fields    map[string]string
	conflicts []string
}

// NewNotification builds a Notification from raw POST fields. When several raw
// keys normalise to the same field (PAYMENT.CODE and PAYMENT_CODE) the first key
// in sorted order is kept and the field is reported by Conflicts.
func NewNotification(fields map[string]string) Notification {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	m := make(map[string]string, len(fields))
	var conflicts []string
	for _, k := range keys {
		nk := normalizeField(k)
		if _, seen := m[nk]; seen {
			if !slices.Contains(conflicts, nk) {
				conflicts = append(conflicts, nk)
			}
			continue
		}
		m[nk] = strings.TrimSpace(fields[k])
	}
	return Notification{fields: m, conflicts: conflicts}
}

// Conflicts lists the fields that arrived under more than one raw key.
func (n Notification) Conflicts() []string { return slices.Clone(n.conflicts) }

// Ambiguous reports whether field arrived under more than one raw key.
func (n Notification) Ambiguous(field string) bool {
	return slices.Contains(n.conflicts, normalizeField(field))
}

func normalizeField(k string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(k), ".", "_"))
}

// Get returns the value of a field, or "" when absent.
func (n Notification) Get(field string) string { return n.fields[normalizeField(field)] }

// Has reports whether the field is present and non-empty.
func (n Notification) Has(field string) bool { return n.Get(field) != "" }

// Fields returns a copy of the raw field map.
func (n Notification) Fields() map[string]string {
	m := make(map[string]string, len(n.fields))
	for k, v := range n.fields {
		m[k] = v
	}
	return m
}

func (n Notification) TransactionID() string { return n.Get(FieldTransactionID) }
func (n Notification) UniqueID() string      { return n.Get(FieldUniqueID) }
func (n Notification) ShortID() string       { return n.Get(FieldShortID) }
func (n Notification) SecurityHash() string  { return n.Get(FieldSecurityHash) }
func (n Notification) Amount() string        { return n.Get(FieldAmount) }
func (n Notification) Currency() string      { return n.Get(FieldCurrency) }
