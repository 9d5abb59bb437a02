package processor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-payment-notify/internal/config"
	"github.com/go-payment-notify/internal/domain"
	"github.com/go-resty/resty/v2"
)

// requestVersion is the processor's POST API version.
const requestVersion = "1.0"

// Client posts transactions to the processor's synchronous POST endpoint.
type Client struct {
	http     *resty.Client
	sender   string
	login    string
	password string
	mode     string
}

func NewClient(cfg config.ProcessorConfig) *Client {
	return &Client{
		http:     resty.New().SetTimeout(cfg.Timeout),
		sender:   cfg.Sender,
		login:    cfg.Login,
		password: cfg.Password,
		mode:     cfg.Mode,
	}
}

// Send posts payload with the merchant credentials added and parses the
// url-encoded reply. The raw reply body is returned alongside for logging.
func (c *Client) Send(ctx context.Context, endpoint string, payload map[string]string) (string, domain.Notification, error) {
	form := make(map[string]string, len(payload)+5)
	for k, v := range payload {
		form[k] = v
	}
	form["SECURITY.SENDER"] = c.sender
	form["USER.LOGIN"] = c.login
	form["USER.PWD"] = c.password
	form["TRANSACTION.MODE"] = c.mode
	form["REQUEST.VERSION"] = requestVersion

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/x-www-form-urlencoded").
		SetFormData(form).
		Post(endpoint)
	if err != nil {
		return "", domain.Notification{}, fmt.Errorf("processor request: %w", err)
	}
	raw := resp.String()
	if resp.IsError() {
		return raw, domain.Notification{}, fmt.Errorf("processor responded %d", resp.StatusCode())
	}

	n, err := ParseReply(raw)
	if err != nil {
		return raw, domain.Notification{}, err
	}
	slog.Debug("processor reply",
		"payment_code", form["PAYMENT.CODE"],
		"transaction_id", form["IDENTIFICATION.TRANSACTIONID"],
		"result", n.Get(domain.FieldProcessingResult),
	)
	return raw, n, nil
}

// ParseReply decodes a url-encoded processor reply into a Notification.
// Repeated keys keep their first value.
func ParseReply(raw string) (domain.Notification, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("parse processor reply: %w", err)
	}
	fields := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return domain.NewNotification(fields), nil
}
