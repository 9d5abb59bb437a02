package payment

import (
	"errors"
	"testing"

	"github.com/go-payment-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(kv ...string) domain.Notification {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return domain.NewNotification(m)
}

func TestClassify_Table(t *testing.T) {
	cases := []struct {
		name   string
		result string
		status string
		want   domain.Result
	}{
		{"ack without status", "ACK", "", domain.ResultSuccess},
		{"ack 90", "ACK", "90", domain.ResultSuccess},
		{"ack 80 waiting", "ACK", "80", domain.ResultPending},
		{"lowercase ack", "ack", "90", domain.ResultSuccess},
		{"nok 60", "NOK", "60", domain.ResultError},
		{"nok without status", "NOK", "", domain.ResultError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := notification(
				"PAYMENT.CODE", "CC.DB",
				"PROCESSING.RESULT", tc.result,
				"PROCESSING.STATUS.CODE", tc.status,
			)
			vn, err := NewClassifier().Classify(n)
			require.NoError(t, err)
			assert.Equal(t, tc.want, vn.Result)
		})
	}
}

func TestClassify_ErrorCarriesCodeAndMessage(t *testing.T) {
	n := notification(
		"PAYMENT.CODE", "DD.DB",
		"PROCESSING.RESULT", "NOK",
		"PROCESSING.STATUS.CODE", "60",
		"PROCESSING.RETURN.CODE", "001",
		"PROCESSING.RETURN", "Card declined",
	)
	vn, err := NewClassifier().Classify(n)
	require.NoError(t, err)
	assert.True(t, vn.IsError())
	assert.Equal(t, "001", vn.ErrorCode)
	assert.Equal(t, "Card declined", vn.ErrorMessage)
	assert.Equal(t, domain.PaymentCode{Method: "DD", Phase: "DB"}, vn.Code)
}

func TestClassify_Rejects(t *testing.T) {
	cases := []struct {
		name string
		n    domain.Notification
	}{
		{"missing result", notification("PAYMENT.CODE", "CC.DB")},
		{"unknown result", notification("PAYMENT.CODE", "CC.DB", "PROCESSING.RESULT", "MAYBE")},
		{"ack with error status", notification("PAYMENT.CODE", "CC.DB", "PROCESSING.RESULT", "ACK", "PROCESSING.STATUS.CODE", "60")},
		{"nok with success status", notification("PAYMENT.CODE", "CC.DB", "PROCESSING.RESULT", "NOK", "PROCESSING.STATUS.CODE", "90")},
		{"nok with waiting status", notification("PAYMENT.CODE", "CC.DB", "PROCESSING.RESULT", "NOK", "PROCESSING.STATUS.CODE", "80")},
		{"missing payment code", notification("PROCESSING.RESULT", "ACK")},
		{"payment code without phase", notification("PAYMENT.CODE", "CC", "PROCESSING.RESULT", "ACK")},
		{"payment code with empty method", notification("PAYMENT.CODE", ".DB", "PROCESSING.RESULT", "ACK")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClassifier().Classify(tc.n)
			var ce *domain.ClassificationError
			require.ErrorAs(t, err, &ce)
			assert.True(t, errors.Is(err, domain.ErrBadRequest))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	n := notification("PAYMENT.CODE", "iv.pa", "PROCESSING.RESULT", "ACK", "IDENTIFICATION.UNIQUEID", "U1")
	c := NewClassifier()
	a, err := c.Classify(n)
	require.NoError(t, err)
	b, err := c.Classify(n)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "IV.PA", a.Code.String())
}

func TestClassify_UnknownCodeStillClassified(t *testing.T) {
	vn, err := NewClassifier().Classify(notification("PAYMENT.CODE", "ZZ.QQ", "PROCESSING.RESULT", "ACK"))
	require.NoError(t, err)
	assert.True(t, vn.IsSuccess())
	assert.False(t, vn.Code.Method.Known())
}

func TestClassify_RejectsFieldSentTwice(t *testing.T) {
	n := domain.NewNotification(map[string]string{
		"PAYMENT.CODE":      "CC.DB",
		"PAYMENT_CODE":      "CC.PA",
		"PROCESSING.RESULT": "ACK",
	})

	_, err := NewClassifier().Classify(n)

	var ce *domain.ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, domain.FieldPaymentCode)
}
